package parsing

import (
	"regexp"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

const (
	datePattern     = `(\d{1,2}/\d{1,2}/\d{4})`
	looseDate       = `(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})`
	resultPattern   = `(PASS(?:ED)?|FAIL(?:ED)?|LTD\.?|LIMITED|ADJUSTED)`
	boundedWords    = `(\S+(?:[ \t]+\S+)*?)(?:\s{2,}|\n|$)`
	restOfLineLazy  = `(.+?)(?:\s{2,}|\n|$)`
	passFailPattern = `(PASS|FAIL|LTD\.?|LIMITED)`
)

var (
	certNumberRule = FieldRule{Field: FieldCertNumber, Patterns: patterns(
		`(?i)Cert\s*#\s*[:=]?\s*(\S+)`,
		`(?i)Cert(?:ificate)?\s*No\.?\s*[:=]?\s*(\S+)`,
	)}
	equipmentIDRule = FieldRule{Field: FieldEquipmentID, Patterns: patterns(
		`\bI\.?D\.?\s*[:=]?\s*(\d+)`,
		`\bI\.D\.\s*[:=]?\s*(\S+)`,
	)}
	serialRule = FieldRule{Field: FieldSerialNumber, Patterns: patterns(
		`(?i)Serial\s*Number\s*[:=]?\s*(\S+)`,
		`(?i)Serial\s*No\.?\s*[:=]?\s*(\S+)`,
	)}
	manufacturerRule = FieldRule{
		Field:    FieldManufacturer,
		Patterns: patterns(`(?i)Manufacturer\s*[:=]?\s*` + boundedWords),
		Stops:    []string{"As Found", "As Left", "Cal Date", "Calibration"},
	}
	modelRule = FieldRule{
		Field: FieldModelNumber,
		Patterns: patterns(
			`(?i)Model\s*Number\s*[:=]?\s*`+boundedWords,
			`(?i)\bModel\s*(?:No\.?)?\s*[:=]\s*`+boundedWords,
		),
		Stops: []string{"Cal Date", "As Found", "Crib"},
	}
	descriptionRule = FieldRule{Field: FieldDescription, Patterns: patterns(
		`(?i)Description\s*[:=]?\s*` + restOfLineLazy,
	)}
	resultRule = FieldRule{
		Field:    FieldResult,
		Patterns: patterns(`(?i)Calibration\s*Result\s*[:=]?\s*` + resultPattern),
		Upper:    true,
	}
	dueDateRule = FieldRule{Field: FieldDueDate, Patterns: patterns(
		`(?i)Cal\.?\s*Due\s*Date\s*[:=]?\s*`+datePattern,
		`(?i)\bDue\s*Date\s*[:=]?\s*`+looseDate,
	)}
	calDateRule = FieldRule{Field: FieldCalDate, Patterns: patterns(
		`(?i)Cal\.?\s*Date\s*[:=]?\s*`+datePattern,
		`(?i)Calibration\s*Date\s*[:=]?\s*`+looseDate,
	)}
	intervalRule = FieldRule{Field: FieldInterval, Patterns: patterns(
		`(?i)Cal(?:ibration)?\.?\s*Interval\s*[:=]?\s*(\d+\s*\w+)`,
	)}
)

func commonRules() []FieldRule {
	return []FieldRule{
		certNumberRule,
		equipmentIDRule,
		serialRule,
		manufacturerRule,
		modelRule,
		descriptionRule,
		resultRule,
		dueDateRule,
		calDateRule,
		intervalRule,
	}
}

func calTecRules() []FieldRule {
	return append(commonRules(),
		FieldRule{Field: FieldGeneratedDate, Patterns: patterns(`(?i)Generated\s+` + datePattern)},
		FieldRule{Field: FieldWorkOrder, Patterns: patterns(`(?i)\bWO\b\s*[:#]?\s*(\S+)`)},
		FieldRule{
			Field:    FieldToolType,
			Patterns: patterns(`\bType\s+([A-Z][A-Z\s\d'"]+?)(?:\s{2,}|\n|$)`),
			Stops:    []string{"Crib", "Service", "Temp"},
		},
		FieldRule{Field: FieldAsFound, Patterns: patterns(`(?i)As\s*Found\s*[:=]?\s*` + passFailPattern), Upper: true},
		FieldRule{Field: FieldAsLeft, Patterns: patterns(`(?i)As\s*Left\s*[:=]?\s*` + passFailPattern), Upper: true},
		FieldRule{Field: FieldTechnician, Patterns: patterns(`(?i)Service\s*Technician\s*[:=]?\s*` + restOfLineLazy)},
		FieldRule{Field: FieldTemperature, Patterns: patterns(`(?i)Temp\.?\s*/?\s*RH\s*[:=]?\s*(.+?)(?:\n|$)`)},
		FieldRule{Field: FieldCribBin, Patterns: patterns(`(?i)\bCrib\s*(?:/\s*Bin)?\s*[:=]?\s*(\S+)`)},
		FieldRule{Field: FieldBuilding, Patterns: patterns(`(?i)\bBuilding\s*[:=]?\s*(\S+)`)},
		FieldRule{Field: FieldFloor, Patterns: patterns(`(?i)\bFloor\s*[:=]?\s*(\S+)`)},
		FieldRule{Field: FieldRoom, Patterns: patterns(`(?i)\bRoom\s*[:=]?\s*(\S+)`)},
	)
}

func mettlerRules() []FieldRule {
	return []FieldRule{
		{Field: FieldCertNumber, Patterns: patterns(`(?i)Report\s*ID\s*[:=]?\s*([A-Za-z0-9\-]+)`)},
		{Field: FieldSerialNumber, Patterns: patterns(`(?i)Serial\s*No\.?\s*[:=]?\s*([^\n]+)`)},
		{Field: FieldModelNumber, Patterns: patterns(`(?i)\bModel\s*[:=]?\s*([^\n]+)`)},
		{Field: FieldToolType, Patterns: patterns(`(?i)Instrument\s*Type\s*[:=]?\s*([^\n]+)`)},
		dueDateRule,
		calDateRule,
	}
}

// DefaultStrategies is the vendor table. A new vendor is a new entry here.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Vendor:          domain.VendorGeneric,
			DefaultSchedule: domain.ScheduleAnnual,
			Rules:           commonRules(),
		},
		{
			Vendor:          domain.VendorCalTec,
			Company:         "Cal Tec Labs",
			DefaultSchedule: domain.ScheduleSemiannual,
			Rules:           calTecRules(),
			TestPoints:      true,
			StandardsUsed:   true,
		},
		{
			Vendor:          domain.VendorMettler,
			Company:         "Mettler Toledo",
			DefaultSchedule: domain.ScheduleSemiannual,
			Presets:         map[Field]string{FieldManufacturer: "Mettler Toledo"},
			Rules:           mettlerRules(),
		},
	}
}
