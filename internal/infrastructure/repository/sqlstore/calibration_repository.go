package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

type CalibrationRepository struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

func (r *CalibrationRepository) Create(ctx context.Context, rec *domain.CalibrationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	calDate := domain.DateOf(rec.CalibrationDate)
	_, err := r.tx.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO calibration_records (
	id, tool_id, calibration_date, due_date, performed_by, calibration_company, source_company,
	certificate_number, report_number, result, as_found, as_left, temperature, cal_interval,
	cert_tool_id, cert_serial, cert_model, cert_description, test_points, standards_used,
	notes, requires_replacement, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
`),
		rec.ID, rec.ToolID, calDate.Format(dateLayout), dateArg(rec.DueDate), rec.PerformedBy,
		rec.CalibrationCompany, rec.SourceCompany, rec.CertificateNumber, rec.ReportNumber, string(rec.Result),
		rec.AsFound, rec.AsLeft, rec.Temperature, rec.CalInterval, rec.CertToolID, rec.CertSerial, rec.CertModel,
		rec.CertDescription, rawJSON(rec.TestPoints), rawJSON(rec.StandardsUsed), rec.Notes,
		rec.RequiresReplacement, stampArg(rec.CreatedAt),
	)
	if err != nil {
		return writeError("insert calibration record", err)
	}
	return nil
}

// ListByTool returns records newest first.
func (r *CalibrationRepository) ListByTool(ctx context.Context, toolID string) ([]domain.CalibrationRecord, error) {
	rows, err := r.tx.QueryContext(ctx, r.dialect.rebind(`
SELECT id, tool_id, calibration_date, due_date, performed_by, calibration_company, source_company,
	certificate_number, report_number, result, as_found, as_left, temperature, cal_interval,
	cert_tool_id, cert_serial, cert_model, cert_description, test_points, standards_used,
	notes, requires_replacement, created_at
FROM calibration_records
WHERE tool_id = $1
ORDER BY calibration_date DESC, created_at DESC
`), toolID)
	if err != nil {
		return nil, fmt.Errorf("list calibration records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CalibrationRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration records: %w", err)
	}
	return out, nil
}

// Exists matches the certificate number, or the report number for records without one.
func (r *CalibrationRepository) Exists(ctx context.Context, toolID, certificateNumber string, date time.Time) (bool, error) {
	var n int
	err := r.tx.QueryRowContext(ctx, r.dialect.rebind(`
SELECT COUNT(*)
FROM calibration_records
WHERE tool_id = $1
	AND COALESCE(NULLIF(certificate_number, ''), report_number) = $2
	AND calibration_date = $3
`), toolID, certificateNumber, domain.DateOf(date).Format(dateLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check calibration record: %w", err)
	}
	return n > 0, nil
}

func scanRecord(row scanner) (domain.CalibrationRecord, error) {
	var (
		rec                domain.CalibrationRecord
		calDate, createdAt string
		result             string
		due                sql.NullString
		points, standards  sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.ToolID, &calDate, &due, &rec.PerformedBy, &rec.CalibrationCompany, &rec.SourceCompany,
		&rec.CertificateNumber, &rec.ReportNumber, &result, &rec.AsFound, &rec.AsLeft, &rec.Temperature,
		&rec.CalInterval, &rec.CertToolID, &rec.CertSerial, &rec.CertModel, &rec.CertDescription,
		&points, &standards, &rec.Notes, &rec.RequiresReplacement, &createdAt,
	)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("scan calibration record: %w", err)
	}
	rec.Result = domain.CalibrationResult(result)
	d, err := parseDate(sql.NullString{String: calDate, Valid: true})
	if err != nil {
		return domain.CalibrationRecord{}, err
	}
	if d != nil {
		rec.CalibrationDate = *d
	}
	if rec.DueDate, err = parseDate(due); err != nil {
		return domain.CalibrationRecord{}, err
	}
	if rec.CreatedAt, err = parseStamp(createdAt); err != nil {
		return domain.CalibrationRecord{}, err
	}
	if points.Valid && points.String != "" {
		rec.TestPoints = json.RawMessage(points.String)
	}
	if standards.Valid && standards.String != "" {
		rec.StandardsUsed = json.RawMessage(standards.String)
	}
	return rec, nil
}
