package domain

import (
	"encoding/json"
	"time"
)

type CalibrationResult string

const (
	ResultPass     CalibrationResult = "pass"
	ResultFail     CalibrationResult = "fail"
	ResultAdjusted CalibrationResult = "adjusted"
	ResultLimited  CalibrationResult = "limited"
)

func ParseCalibrationResult(raw string) (CalibrationResult, bool) {
	switch r := CalibrationResult(raw); r {
	case ResultPass, ResultFail, ResultAdjusted, ResultLimited:
		return r, true
	}
	return "", false
}

// CalibrationRecord is one calibration event for one tool. Records are never updated.
type CalibrationRecord struct {
	ID                  string            `json:"id"`
	ToolID              string            `json:"tool_id"`
	CalibrationDate     time.Time         `json:"calibration_date"`
	DueDate             *time.Time        `json:"due_date,omitempty"`
	PerformedBy         string            `json:"performed_by,omitempty"`
	CalibrationCompany  string            `json:"calibration_company,omitempty"`
	SourceCompany       string            `json:"source_company,omitempty"`
	CertificateNumber   string            `json:"certificate_number,omitempty"`
	ReportNumber        string            `json:"report_number,omitempty"`
	Result              CalibrationResult `json:"result"`
	AsFound             string            `json:"as_found,omitempty"`
	AsLeft              string            `json:"as_left,omitempty"`
	Temperature         string            `json:"temperature,omitempty"`
	CalInterval         string            `json:"cal_interval,omitempty"`
	CertToolID          string            `json:"cert_tool_id,omitempty"`
	CertSerial          string            `json:"cert_serial,omitempty"`
	CertModel           string            `json:"cert_model,omitempty"`
	CertDescription     string            `json:"cert_description,omitempty"`
	TestPoints          json.RawMessage   `json:"test_points,omitempty"`
	StandardsUsed       json.RawMessage   `json:"standards_used,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	RequiresReplacement bool              `json:"requires_replacement"`
	CreatedAt           time.Time         `json:"created_at"`
}

type AttachmentType string

const (
	AttachmentCert   AttachmentType = "cert"
	AttachmentPhoto  AttachmentType = "photo"
	AttachmentReport AttachmentType = "report"
	AttachmentMisc   AttachmentType = "misc"
)

// FileAttachment references a stored blob. An attachment without a tool is an
// unmatched certificate waiting for a manual link.
type FileAttachment struct {
	ID                  string         `json:"id"`
	ToolID              string         `json:"tool_id,omitempty"`
	CalibrationRecordID string         `json:"calibration_record_id,omitempty"`
	BlobID              string         `json:"blob_id"`
	OriginalFilename    string         `json:"original_filename"`
	FileType            AttachmentType `json:"file_type"`
	Notes               string         `json:"notes,omitempty"`
	UploadedAt          time.Time      `json:"uploaded_at"`
}
