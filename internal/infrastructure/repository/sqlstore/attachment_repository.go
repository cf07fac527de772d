package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type AttachmentRepository struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

const attachmentColumns = `id, tool_id, calibration_record_id, blob_id, original_filename, file_type, notes, uploaded_at`

func (r *AttachmentRepository) Create(ctx context.Context, att *domain.FileAttachment) error {
	if att.UploadedAt.IsZero() {
		att.UploadedAt = r.now().UTC()
	}
	_, err := r.tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO file_attachments (`+attachmentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`),
		att.ID, nullable(att.ToolID), nullable(att.CalibrationRecordID), att.BlobID, att.OriginalFilename,
		string(att.FileType), att.Notes, stampArg(att.UploadedAt),
	)
	if err != nil {
		return writeError("insert attachment", err)
	}
	return nil
}

func (r *AttachmentRepository) GetByBlob(ctx context.Context, blobID string) (*domain.FileAttachment, error) {
	row := r.tx.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+attachmentColumns+`
FROM file_attachments
WHERE blob_id = $1
`), blobID)
	att, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAttachmentNotFound, "get attachment", fmt.Errorf("blob=%s", blobID))
		}
		return nil, fmt.Errorf("get attachment by blob: %w", err)
	}
	return &att, nil
}

func (r *AttachmentRepository) Link(ctx context.Context, id, toolID, recordID string) error {
	res, err := r.tx.ExecContext(ctx, r.dialect.rebind(`
UPDATE file_attachments
SET tool_id = $2, calibration_record_id = $3
WHERE id = $1
`), id, nullable(toolID), nullable(recordID))
	if err != nil {
		return fmt.Errorf("link attachment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrAttachmentNotFound, "link attachment", fmt.Errorf("id=%s", id))
	}
	return nil
}

// ListUnlinked returns attachments without a tool, newest first.
func (r *AttachmentRepository) ListUnlinked(ctx context.Context, limit int) ([]domain.FileAttachment, error) {
	query := `
SELECT ` + attachmentColumns + `
FROM file_attachments
WHERE tool_id IS NULL
ORDER BY uploaded_at DESC, id
`
	var args []any
	if limit > 0 {
		query += "LIMIT $1"
		args = append(args, limit)
	}
	rows, err := r.tx.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list unlinked attachments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FileAttachment, 0)
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return out, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM file_attachments WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrAttachmentNotFound, "delete attachment", fmt.Errorf("id=%s", id))
	}
	return nil
}

func scanAttachment(row scanner) (domain.FileAttachment, error) {
	var (
		att              domain.FileAttachment
		toolID, recordID sql.NullString
		fileType         string
		uploadedAt       string
	)
	if err := row.Scan(&att.ID, &toolID, &recordID, &att.BlobID, &att.OriginalFilename, &fileType, &att.Notes, &uploadedAt); err != nil {
		return domain.FileAttachment{}, err
	}
	att.ToolID, att.CalibrationRecordID = toolID.String, recordID.String
	att.FileType = domain.AttachmentType(fileType)
	t, err := parseStamp(uploadedAt)
	if err != nil {
		return domain.FileAttachment{}, err
	}
	att.UploadedAt = t
	return att, nil
}
