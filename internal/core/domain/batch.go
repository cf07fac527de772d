package domain

import (
	"strconv"
	"time"
)

type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileSkipped   FileStatus = "skipped"
)

type CertificateAction string

const (
	ActionLinked          CertificateAction = "linked"
	ActionCreated         CertificateAction = "created"
	ActionUnmatched       CertificateAction = "unmatched"
	ActionAlreadyRecorded CertificateAction = "already_recorded"
	ActionFailed          CertificateAction = "failed"
)

// Skip reasons reported per file.
const (
	SkipNotAllowed     = "File type not allowed"
	SkipNotPDF         = "Not a PDF file"
	SkipNoCertificates = "No certificates detected in PDF"
	SkipUnreadable     = "Document could not be read"
)

type CertificateResult struct {
	Index            int                   `json:"index"`
	Pages            string                `json:"pages"`
	Range            PageRange             `json:"range"`
	Certificate      NormalizedCertificate `json:"certificate"`
	BlobID           string                `json:"blob_id,omitempty"`
	OriginalFilename string                `json:"original_filename,omitempty"`
	Matched          bool                  `json:"matched"`
	MatchTag         string                `json:"match_tag,omitempty"`
	MatchRank        int                   `json:"match_rank,omitempty"`
	ToolID           string                `json:"tool_id,omitempty"`
	ToolName         string                `json:"tool_name,omitempty"`
	ToolLogNumber    string                `json:"tool_log_number,omitempty"`
	RecordID         string                `json:"record_id,omitempty"`
	Action           CertificateAction     `json:"action"`
	Error            string                `json:"error,omitempty"`
}

type FileResult struct {
	Filename     string              `json:"filename"`
	BlobID       string              `json:"blob_id,omitempty"`
	Status       FileStatus          `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	Certificates []CertificateResult `json:"certificates"`
}

type BatchTotals struct {
	Certificates int `json:"certificates"`
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	Failed       int `json:"failed"`
	SkippedFiles int `json:"skipped_files"`
}

type BatchResult struct {
	ID          string       `json:"id"`
	Files       []FileResult `json:"files"`
	Totals      BatchTotals  `json:"totals"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Tally recomputes the totals from the file results.
func (b *BatchResult) Tally() {
	var totals BatchTotals
	for _, f := range b.Files {
		if f.Status == FileSkipped {
			totals.SkippedFiles++
		}
		for _, c := range f.Certificates {
			totals.Certificates++
			switch {
			case c.Action == ActionFailed:
				totals.Failed++
				totals.Unmatched++
			case c.Matched:
				totals.Matched++
			default:
				totals.Unmatched++
			}
		}
	}
	b.Totals = totals
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return "Row " + strconv.Itoa(e.Row) + ": " + e.Message
}

type LegacyImportResult struct {
	Imported int        `json:"imported"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// BatchEvent is published after a batch commits.
type BatchEvent struct {
	BatchID     string      `json:"batch_id"`
	Kind        string      `json:"kind"`
	Totals      BatchTotals `json:"totals"`
	ToolIDs     []string    `json:"tool_ids,omitempty"`
	CompletedAt time.Time   `json:"completed_at"`
}

const (
	BatchKindCertificates = "certificates"
	BatchKindLegacy       = "legacy"
)
