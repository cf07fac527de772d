package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type ToolRepository struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

const toolColumns = `id, name, description, tool_type, manufacturer, model_number, serial_number, log_number,
	tool_id_number, sticker_id, location, owner, router, schedule, custom_interval_days, status, on_backup_list,
	last_calibration_date, next_calibration_date, service_in_date, service_out_date, comments, created_at, updated_at`

func toolArgs(t *domain.Tool) []any {
	return []any{
		t.ID, t.Name, t.Description, t.ToolType, t.Manufacturer, t.ModelNumber, t.SerialNumber, t.LogNumber,
		t.ToolIDNumber, t.StickerID, t.Location, t.Owner, t.Router, string(t.Schedule), t.CustomIntervalDays,
		string(t.Status), t.OnBackupList,
		dateArg(t.LastCalibrationDate), dateArg(t.NextCalibrationDate), dateArg(t.ServiceInDate), dateArg(t.ServiceOutDate),
		t.Comments, stampArg(t.CreatedAt), stampArg(t.UpdatedAt),
	}
}

func scanTool(row scanner) (domain.Tool, error) {
	var (
		t                         domain.Tool
		schedule, status          string
		last, next, svcIn, svcOut sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.ToolType, &t.Manufacturer, &t.ModelNumber, &t.SerialNumber, &t.LogNumber,
		&t.ToolIDNumber, &t.StickerID, &t.Location, &t.Owner, &t.Router, &schedule, &t.CustomIntervalDays,
		&status, &t.OnBackupList, &last, &next, &svcIn, &svcOut, &t.Comments, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Tool{}, err
	}
	t.Schedule, t.Status = domain.Schedule(schedule), domain.ToolStatus(status)
	if t.LastCalibrationDate, err = parseDate(last); err != nil {
		return domain.Tool{}, err
	}
	if t.NextCalibrationDate, err = parseDate(next); err != nil {
		return domain.Tool{}, err
	}
	if t.ServiceInDate, err = parseDate(svcIn); err != nil {
		return domain.Tool{}, err
	}
	if t.ServiceOutDate, err = parseDate(svcOut); err != nil {
		return domain.Tool{}, err
	}
	if t.CreatedAt, err = parseStamp(createdAt); err != nil {
		return domain.Tool{}, err
	}
	if t.UpdatedAt, err = parseStamp(updatedAt); err != nil {
		return domain.Tool{}, err
	}
	return t, nil
}

func (r *ToolRepository) queryTools(ctx context.Context, op, query string, args ...any) ([]domain.Tool, error) {
	rows, err := r.tx.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.Tool, 0)
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tools: %w", err)
	}
	return out, nil
}

func (r *ToolRepository) Create(ctx context.Context, tool *domain.Tool) error {
	now := r.now().UTC()
	if tool.CreatedAt.IsZero() {
		tool.CreatedAt = now
	}
	if tool.UpdatedAt.IsZero() {
		tool.UpdatedAt = now
	}
	_, err := r.tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO tools (`+toolColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
`), toolArgs(tool)...)
	if err != nil {
		return writeError("insert tool", err)
	}
	return nil
}

func (r *ToolRepository) GetByID(ctx context.Context, id string) (*domain.Tool, error) {
	row := r.tx.QueryRowContext(ctx, r.dialect.rebind(`
SELECT `+toolColumns+`
FROM tools
WHERE id = $1
`), id)
	t, err := scanTool(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrToolNotFound, "get tool", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get tool by id: %w", err)
	}
	return &t, nil
}

// Update applies the set fields and rewrites the row.
func (r *ToolRepository) Update(ctx context.Context, id string, upd domain.ToolUpdate) (*domain.Tool, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return t, nil
	}
	upd.Apply(t)
	t.UpdatedAt = r.now().UTC()

	res, err := r.tx.ExecContext(ctx, r.dialect.rebind(`
UPDATE tools
SET name = $2, description = $3, tool_type = $4, manufacturer = $5, model_number = $6, serial_number = $7,
	log_number = $8, tool_id_number = $9, sticker_id = $10, location = $11, owner = $12, router = $13,
	schedule = $14, custom_interval_days = $15, status = $16, on_backup_list = $17,
	last_calibration_date = $18, next_calibration_date = $19, service_in_date = $20, service_out_date = $21,
	comments = $22, created_at = $23, updated_at = $24
WHERE id = $1
`), toolArgs(t)...)
	if err != nil {
		return nil, writeError("update tool", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.WrapError(domain.ErrToolNotFound, "update tool", fmt.Errorf("id=%s", id))
	}
	return t, nil
}

// Delete removes the tool with its calibration records and attachments.
func (r *ToolRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM file_attachments WHERE tool_id = $1`), id); err != nil {
		return fmt.Errorf("delete tool attachments: %w", err)
	}
	if _, err := r.tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM calibration_records WHERE tool_id = $1`), id); err != nil {
		return fmt.Errorf("delete tool records: %w", err)
	}
	res, err := r.tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM tools WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrToolNotFound, "delete tool", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ToolRepository) FindFirst(ctx context.Context, field domain.IdentifierField, value string, mode domain.MatchMode) (*domain.Tool, bool, error) {
	if strings.TrimSpace(value) == "" {
		return nil, false, nil
	}
	col, err := identifierColumn(field)
	if err != nil {
		return nil, false, err
	}

	var cond string
	switch mode {
	case domain.MatchEqual:
		cond = col + ` = $1`
	case domain.MatchEqualFold:
		cond = `LOWER(` + col + `) = LOWER($1)`
	default:
		cond = `LOWER(` + col + `) LIKE $1 ESCAPE '\'`
		value = "%" + escapeLike(strings.ToLower(value)) + "%"
	}

	tools, err := r.queryTools(ctx, "find tool", `
SELECT `+toolColumns+`
FROM tools
WHERE `+col+` <> '' AND `+cond+`
ORDER BY created_at, id
LIMIT 1
`, value)
	if err != nil {
		return nil, false, err
	}
	if len(tools) == 0 {
		return nil, false, nil
	}
	return &tools[0], true, nil
}

func (r *ToolRepository) Search(ctx context.Context, fields []domain.IdentifierField, value string, limit int) ([]domain.Tool, error) {
	if strings.TrimSpace(value) == "" || len(fields) == 0 {
		return []domain.Tool{}, nil
	}
	conds := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := identifierColumn(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, `LOWER(`+col+`) LIKE $1 ESCAPE '\'`)
	}
	query := `
SELECT ` + toolColumns + `
FROM tools
WHERE ` + strings.Join(conds, " OR ") + `
ORDER BY created_at, id
`
	args := []any{"%" + escapeLike(strings.ToLower(value)) + "%"}
	if limit > 0 {
		query += "LIMIT $2"
		args = append(args, limit)
	}
	return r.queryTools(ctx, "search tools", query, args...)
}

func (r *ToolRepository) List(ctx context.Context, filter domain.ToolFilter) ([]domain.Tool, error) {
	query := `
SELECT ` + toolColumns + `
FROM tools
WHERE 1 = 1
`
	var args []any
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			args = append(args, string(s))
			marks = append(marks, fmt.Sprintf("$%d", len(args)))
		}
		query += "AND status IN (" + strings.Join(marks, ",") + ")\n"
	}
	if filter.ExcludeBackup {
		query += "AND on_backup_list = FALSE\n"
	}
	query += "ORDER BY created_at, id\n"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("LIMIT $%d", len(args))
	}
	return r.queryTools(ctx, "list tools", query, args...)
}
