package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// Upload is one file of a certificate batch.
type Upload struct {
	Filename string
	Body     io.Reader
}

type BatchOptions struct {
	// CreateUnmatched synthesizes a tool for certificates that match nothing.
	CreateUnmatched bool
}

// CertificateImporter is the inbound contract for bulk certificate ingestion.
type CertificateImporter interface {
	Import(ctx context.Context, uploads []Upload, opts BatchOptions) (*domain.BatchResult, error)
}

// LegacyImporter loads the legacy tracking spreadsheet.
type LegacyImporter interface {
	ImportFile(ctx context.Context, filename string, body io.Reader) (*domain.LegacyImportResult, error)
}

type LinkRequest struct {
	BlobID           string `json:"blob_id"`
	OriginalFilename string `json:"original_filename"`
	ToolID           string `json:"tool_id"`
	CreateTool       bool   `json:"create_tool"`
}

type LinkResult struct {
	Tool   *domain.Tool              `json:"tool"`
	Record *domain.CalibrationRecord `json:"record,omitempty"`
	Action domain.CertificateAction  `json:"action"`
}

// CertificateLinker resolves certificates the batch could not match.
type CertificateLinker interface {
	Link(ctx context.Context, req LinkRequest) (*LinkResult, error)
	ListUnmatched(ctx context.Context, limit int) ([]domain.FileAttachment, error)
}

// LookupResult groups the tools found for one query string.
type LookupResult struct {
	Query string        `json:"query"`
	Tools []domain.Tool `json:"tools"`
}

type Alert struct {
	Tool         domain.Tool `json:"tool"`
	DaysUntilDue int         `json:"days_until_due"`
}

// CalibrationEntry is a calibration logged by hand.
type CalibrationEntry struct {
	CalibrationDate    time.Time
	DueDate            *time.Time
	PerformedBy        string
	CalibrationCompany string
	CertificateNumber  string
	Result             domain.CalibrationResult
	Notes              string
}

// ToolRegistry is the inbound contract for tool maintenance.
type ToolRegistry interface {
	Create(ctx context.Context, tool domain.Tool) (*domain.Tool, error)
	Get(ctx context.Context, id string) (*domain.Tool, error)
	History(ctx context.Context, id string) (*domain.Tool, []domain.CalibrationRecord, error)
	Delete(ctx context.Context, id string) error
	Lookup(ctx context.Context, queries []string) ([]LookupResult, error)
	Alerts(ctx context.Context) ([]Alert, error)
	ChangeStatus(ctx context.Context, id string, status domain.ToolStatus) (*domain.Tool, error)
	MoveToBackup(ctx context.Context, id string) (*domain.Tool, error)
	Restore(ctx context.Context, id string) (*domain.Tool, error)
	LogCalibration(ctx context.Context, id string, entry CalibrationEntry) (*domain.Tool, *domain.CalibrationRecord, error)
}

// StatusSweeper refreshes date-driven statuses.
type StatusSweeper interface {
	RefreshAll(ctx context.Context) (int, error)
}
