package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// PageDocument is an opened multi-page document.
type PageDocument interface {
	NumPages() int
	// PageText returns the plain text of a zero-based page, or "" when the page cannot be read.
	PageText(page int) string
	// ExtractRange returns a new document holding pages start..end inclusive.
	ExtractRange(start, end int) ([]byte, error)
}

// PageTextExtractor opens documents for page-level text access.
type PageTextExtractor interface {
	Open(data []byte) (PageDocument, error)
}

// BlobStore stores raw files under generated identifiers.
type BlobStore interface {
	Store(ctx context.Context, originalName string, data io.Reader) (string, error)
	Open(ctx context.Context, blobID string) (io.ReadCloser, error)
	Delete(ctx context.Context, blobID string) error
}

// ToolRepository persists tools inside a unit of work.
type ToolRepository interface {
	Create(ctx context.Context, tool *domain.Tool) error
	GetByID(ctx context.Context, id string) (*domain.Tool, error)
	Update(ctx context.Context, id string, upd domain.ToolUpdate) (*domain.Tool, error)
	Delete(ctx context.Context, id string) error
	// FindFirst returns the oldest tool whose field matches value.
	FindFirst(ctx context.Context, field domain.IdentifierField, value string, mode domain.MatchMode) (*domain.Tool, bool, error)
	// Search returns tools whose field contains value, case-insensitively.
	Search(ctx context.Context, fields []domain.IdentifierField, value string, limit int) ([]domain.Tool, error)
	List(ctx context.Context, filter domain.ToolFilter) ([]domain.Tool, error)
}

// CalibrationRepository appends calibration history.
type CalibrationRepository interface {
	Create(ctx context.Context, rec *domain.CalibrationRecord) error
	ListByTool(ctx context.Context, toolID string) ([]domain.CalibrationRecord, error)
	// Exists reports whether the tool already has a record for this certificate and date.
	Exists(ctx context.Context, toolID, certificateNumber string, date time.Time) (bool, error)
}

// AttachmentRepository persists blob references.
type AttachmentRepository interface {
	Create(ctx context.Context, att *domain.FileAttachment) error
	GetByBlob(ctx context.Context, blobID string) (*domain.FileAttachment, error)
	Link(ctx context.Context, id, toolID, recordID string) error
	ListUnlinked(ctx context.Context, limit int) ([]domain.FileAttachment, error)
	Delete(ctx context.Context, id string) error
}

// UnitOfWork stages every mutation of one batch in a single transaction.
type UnitOfWork interface {
	Tools() ToolRepository
	Calibrations() CalibrationRepository
	Attachments() AttachmentRepository
	// Scoped runs fn inside a savepoint; an error from fn rolls back only its own writes.
	Scoped(ctx context.Context, fn func(ctx context.Context) error) error
	Commit() error
	Rollback() error
}

// ToolStore opens units of work over the entity store.
type ToolStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// EventPublisher announces committed batches.
type EventPublisher interface {
	PublishBatchCommitted(ctx context.Context, event domain.BatchEvent) error
}

// EventSubscriber consumes committed batch events.
type EventSubscriber interface {
	SubscribeBatchCommitted(ctx context.Context, handler func(context.Context, domain.BatchEvent) error) error
}

// PendingCertificates caches parsed certificates that are waiting for a manual link.
type PendingCertificates interface {
	Put(blobID string, cert domain.NormalizedCertificate)
	Get(blobID string) (domain.NormalizedCertificate, bool)
	Remove(blobID string)
}

// ImportMetrics records pipeline outcomes.
type ImportMetrics interface {
	ObserveBatch(result domain.BatchResult, seconds float64)
	ObserveLegacyImport(result domain.LegacyImportResult)
	ObserveCommitFailure()
}

// IdentifierGenerator produces ids and random suffixes.
type IdentifierGenerator interface {
	NewID() string
	// Suffix returns n lowercase hex characters.
	Suffix(n int) string
}

// TableReader decodes a spreadsheet-like file into rows of cells.
type TableReader interface {
	ReadRows(r io.Reader) ([][]string, error)
}

// BatchReporter renders a batch result as a downloadable report.
type BatchReporter interface {
	BatchReport(result domain.BatchResult) ([]byte, error)
}

// BatchResults keeps recent batch results so a report can be fetched after the upload.
type BatchResults interface {
	Put(result domain.BatchResult)
	Get(batchID string) (domain.BatchResult, bool)
}
