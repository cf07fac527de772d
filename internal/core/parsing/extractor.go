package parsing

import (
	"regexp"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type Field string

const (
	FieldCertNumber    Field = "cert_number"
	FieldGeneratedDate Field = "generated_date"
	FieldWorkOrder     Field = "work_order"
	FieldEquipmentID   Field = "equipment_id"
	FieldSerialNumber  Field = "serial_number"
	FieldManufacturer  Field = "manufacturer"
	FieldModelNumber   Field = "model_number"
	FieldToolType      Field = "tool_type"
	FieldDescription   Field = "description"
	FieldResult        Field = "result"
	FieldCalDate       Field = "cal_date"
	FieldDueDate       Field = "due_date"
	FieldAsFound       Field = "as_found"
	FieldAsLeft        Field = "as_left"
	FieldCribBin       Field = "crib_bin"
	FieldTechnician    Field = "technician"
	FieldTemperature   Field = "temperature"
	FieldInterval      Field = "interval"
	FieldBuilding      Field = "building"
	FieldFloor         Field = "floor"
	FieldRoom          Field = "room"
)

// FieldRule extracts one field. Patterns are tried in order and the first
// match wins; the value is the first capture group.
type FieldRule struct {
	Field    Field
	Patterns []*regexp.Regexp
	// Stops truncate the value at the first later occurrence of a following label.
	Stops []string
	Upper bool
}

// Strategy is the extraction recipe for one vendor.
type Strategy struct {
	Vendor          domain.Vendor
	Company         string
	DefaultSchedule domain.Schedule
	Presets         map[Field]string
	Rules           []FieldRule
	TestPoints      bool
	StandardsUsed   bool
}

// placeholders are values that mean "nothing was captured".
var placeholders = map[string]struct{}{
	"":            {},
	"n/a":         {},
	"na":          {},
	"none":        {},
	"calibration": {},
	"cal":         {},
	"cal.":        {},
}

func IsPlaceholder(v string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// FieldExtractor dispatches certificate text to the strategy of its vendor.
type FieldExtractor struct {
	strategies map[domain.Vendor]Strategy
}

// NewFieldExtractor uses DefaultStrategies when none are given.
func NewFieldExtractor(strategies ...Strategy) *FieldExtractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	byVendor := make(map[domain.Vendor]Strategy, len(strategies))
	for _, s := range strategies {
		byVendor[s.Vendor] = s
	}
	return &FieldExtractor{strategies: byVendor}
}

// Strategy returns the strategy for vendor, falling back to the generic one.
func (e *FieldExtractor) Strategy(vendor domain.Vendor) Strategy {
	if s, ok := e.strategies[vendor]; ok {
		return s
	}
	if s, ok := e.strategies[domain.VendorGeneric]; ok {
		return s
	}
	return Strategy{Vendor: domain.VendorGeneric, DefaultSchedule: domain.ScheduleAnnual}
}

// Extract never fails; fields that are not found stay empty.
func (e *FieldExtractor) Extract(text string, cls Classification) domain.NormalizedCertificate {
	strategy := e.Strategy(cls.Vendor)
	cert := domain.NormalizedCertificate{
		DocumentType: cls.DocumentType,
		Vendor:       strategy.Vendor,
	}
	if cert.DocumentType == "" {
		cert.DocumentType = domain.DocumentCertificate
	}
	for field, v := range strategy.Presets {
		assign(&cert, field, v)
	}
	if strings.TrimSpace(text) == "" {
		return cert
	}

	for _, rule := range strategy.Rules {
		if v, ok := rule.apply(text); ok {
			assign(&cert, rule.Field, v)
		}
	}
	if strategy.TestPoints {
		cert.TestPoints = parseTestPoints(text)
	}
	if strategy.StandardsUsed {
		cert.StandardsUsed = parseStandardsUsed(text)
	}
	return cert
}

func (r FieldRule) apply(text string) (string, bool) {
	for _, re := range r.Patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(m[1])
		for _, stop := range r.Stops {
			if idx := strings.Index(v, stop); idx > 0 {
				v = strings.TrimSpace(v[:idx])
			}
		}
		if r.Upper {
			v = strings.ToUpper(v)
		}
		if IsPlaceholder(v) {
			continue
		}
		return v, true
	}
	return "", false
}

func assign(c *domain.NormalizedCertificate, field Field, v string) {
	switch field {
	case FieldCertNumber:
		c.CertNumber = v
	case FieldGeneratedDate:
		c.GeneratedDate = v
	case FieldWorkOrder:
		c.WorkOrder = v
	case FieldEquipmentID:
		c.EquipmentID = v
	case FieldSerialNumber:
		c.SerialNumber = v
	case FieldManufacturer:
		c.Manufacturer = v
	case FieldModelNumber:
		c.ModelNumber = v
	case FieldToolType:
		c.ToolType = v
	case FieldDescription:
		c.Description = v
	case FieldResult:
		c.ResultRaw = v
	case FieldCalDate:
		if t, ok := ParseDate(v); ok {
			c.CalDate = &t
		}
	case FieldDueDate:
		if t, ok := ParseDate(v); ok {
			c.DueDate = &t
		}
	case FieldAsFound:
		c.AsFound = v
	case FieldAsLeft:
		c.AsLeft = v
	case FieldCribBin:
		c.CribBin = v
	case FieldTechnician:
		c.Technician = v
	case FieldTemperature:
		c.Temperature = v
	case FieldInterval:
		c.Interval = v
	case FieldBuilding:
		c.Building = v
	case FieldFloor:
		c.Floor = v
	case FieldRoom:
		c.Room = v
	}
}
