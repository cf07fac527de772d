package domain

import "time"

type DocumentType string

const (
	DocumentCertificate DocumentType = "certificate"
	DocumentTestReport  DocumentType = "test_report"
)

type Vendor string

const (
	VendorGeneric Vendor = "generic"
	VendorCalTec  Vendor = "caltec"
	VendorMettler Vendor = "mettler"
)

// PageRange is an inclusive, zero-based page interval.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) Len() int {
	return r.End - r.Start + 1
}

type TestPoint struct {
	Seq         string   `json:"seq"`
	Description string   `json:"description,omitempty"`
	Tokens      []string `json:"tokens"`
	Raw         string   `json:"raw"`
}

type StandardUsed struct {
	Organization string `json:"organization,omitempty"`
	Detail       string `json:"detail,omitempty"`
	Raw          string `json:"raw"`
}

// NormalizedCertificate is the structured output of field extraction.
// Every field may be empty.
type NormalizedCertificate struct {
	DocumentType  DocumentType   `json:"document_type"`
	Vendor        Vendor         `json:"vendor"`
	CertNumber    string         `json:"cert_number,omitempty"`
	GeneratedDate string         `json:"generated_date,omitempty"`
	WorkOrder     string         `json:"work_order,omitempty"`
	EquipmentID   string         `json:"equipment_id,omitempty"`
	SerialNumber  string         `json:"serial_number,omitempty"`
	Manufacturer  string         `json:"manufacturer,omitempty"`
	ModelNumber   string         `json:"model_number,omitempty"`
	ToolType      string         `json:"tool_type,omitempty"`
	Description   string         `json:"description,omitempty"`
	ResultRaw     string         `json:"result_raw,omitempty"`
	CalDate       *time.Time     `json:"cal_date,omitempty"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	AsFound       string         `json:"as_found,omitempty"`
	AsLeft        string         `json:"as_left,omitempty"`
	CribBin       string         `json:"crib_bin,omitempty"`
	Technician    string         `json:"technician,omitempty"`
	Temperature   string         `json:"temperature,omitempty"`
	Interval      string         `json:"interval,omitempty"`
	Building      string         `json:"building,omitempty"`
	Floor         string         `json:"floor,omitempty"`
	Room          string         `json:"room,omitempty"`
	TestPoints    []TestPoint    `json:"test_points,omitempty"`
	StandardsUsed []StandardUsed `json:"standards_used,omitempty"`
}

type MatchResult struct {
	Tool  *Tool           `json:"-"`
	Field IdentifierField `json:"field,omitempty"`
	Value string          `json:"value,omitempty"`
	// Rank is the position in the rule chain that matched; 0 for token matches.
	Rank int    `json:"rank"`
	Tag  string `json:"tag,omitempty"`
}

func (m MatchResult) Matched() bool {
	return m.Tool != nil
}
