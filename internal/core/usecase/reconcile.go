package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

const (
	bulkImportNote = "Auto-imported from bulk PDF."
	manualLinkNote = "Manually linked from bulk PDF."
)

// Evidence is the stored certificate sub-document.
type Evidence struct {
	BlobID           string
	OriginalFilename string
	// AttachmentID references an existing unlinked attachment to link instead of creating one.
	AttachmentID string
}

type ReconcileInput struct {
	Tool        *domain.Tool
	Certificate domain.NormalizedCertificate
	Strategy    parsing.Strategy
	// Justification is the audit prefix, e.g. the matcher rule that fired.
	Justification string
	Evidence      Evidence
}

type ReconcileOutcome struct {
	Tool   *domain.Tool
	Record *domain.CalibrationRecord
	Update domain.ToolUpdate
	Action domain.CertificateAction
}

// ReconciliationEngine folds a certificate into a tool's calibration history.
type ReconciliationEngine struct {
	ids         ports.IdentifierGenerator
	now         func() time.Time
	dueSoonDays int
}

func NewReconciliationEngine(ids ports.IdentifierGenerator, now func() time.Time, dueSoonDays int) *ReconciliationEngine {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if now == nil {
		now = time.Now
	}
	if dueSoonDays <= 0 {
		dueSoonDays = domain.DefaultDueSoonDays
	}
	return &ReconciliationEngine{ids: ids, now: now, dueSoonDays: dueSoonDays}
}

func (e *ReconciliationEngine) today() time.Time {
	return domain.DateOf(e.now())
}

// CalibrationDate is the certificate date, or today when the certificate has none.
func (e *ReconciliationEngine) CalibrationDate(cert domain.NormalizedCertificate) time.Time {
	if cert.CalDate != nil {
		return domain.DateOf(*cert.CalDate)
	}
	return e.today()
}

// ProposeToolUpdate computes the tool changes implied by a certificate
// without touching the store.
func ProposeToolUpdate(
	tool domain.Tool,
	cert domain.NormalizedCertificate,
	defaultSchedule domain.Schedule,
	calDate time.Time,
	today time.Time,
	dueSoonDays int,
) domain.ToolUpdate {
	var upd domain.ToolUpdate
	upd.ToolIDNumber = backfill(tool.ToolIDNumber, cert.EquipmentID)
	upd.SerialNumber = backfill(tool.SerialNumber, cert.SerialNumber)
	upd.Manufacturer = backfill(tool.Manufacturer, cert.Manufacturer)
	upd.ModelNumber = backfill(tool.ModelNumber, cert.ModelNumber)
	upd.Description = backfill(tool.Description, cert.Description)

	calDate = domain.DateOf(calDate)
	if tool.LastCalibrationDate == nil || calDate.After(domain.DateOf(*tool.LastCalibrationDate)) {
		upd.LastCalibrationDate = &calDate

		schedule, days := tool.Schedule, tool.CustomIntervalDays
		if strings.TrimSpace(cert.Interval) != "" {
			schedule, days, _ = parsing.InferSchedule(cert.Interval, defaultSchedule)
			if schedule != tool.Schedule {
				upd.Schedule = &schedule
			}
			if days != tool.CustomIntervalDays {
				upd.CustomIntervalDays = &days
			}
		}

		var next time.Time
		if cert.DueDate != nil {
			next = domain.DateOf(*cert.DueDate)
		} else {
			next = domain.NextCalibrationDate(calDate, schedule, days)
		}
		if tool.NextCalibrationDate == nil || !next.Equal(domain.DateOf(*tool.NextCalibrationDate)) {
			upd.NextCalibrationDate = &next
		}
	}

	projected := tool
	upd.Apply(&projected)
	result, _ := parsing.NormalizeResult(cert.ResultRaw)
	status := projected.Status
	if result == domain.ResultFail {
		status = domain.ToolOutOfCal
	} else if projected.RefreshStatus(today, dueSoonDays) {
		status = projected.Status
	}
	if status != tool.Status {
		upd.Status = &status
	}
	return upd
}

func backfill(current, candidate string) *string {
	candidate = strings.TrimSpace(candidate)
	if strings.TrimSpace(current) != "" || candidate == "" {
		return nil
	}
	return &candidate
}

// BuildRecord assembles the calibration record for a certificate.
func (e *ReconciliationEngine) BuildRecord(
	toolID string,
	cert domain.NormalizedCertificate,
	strategy parsing.Strategy,
	calDate time.Time,
	nextDate *time.Time,
	justification string,
) (*domain.CalibrationRecord, error) {
	result, recognized := parsing.NormalizeResult(cert.ResultRaw)

	notes := []string{justification}
	if raw := strings.TrimSpace(cert.ResultRaw); raw != "" {
		notes = append(notes, fmt.Sprintf("Certificate result: %s.", raw))
		if !recognized {
			notes = append(notes, fmt.Sprintf("Unrecognized result %q recorded as pass.", raw))
		}
	}

	rec := &domain.CalibrationRecord{
		ID:                  e.ids.NewID(),
		ToolID:              toolID,
		CalibrationDate:     domain.DateOf(calDate),
		PerformedBy:         cert.Technician,
		CalibrationCompany:  strategy.Company,
		SourceCompany:       strategy.Company,
		Result:              result,
		AsFound:             cert.AsFound,
		AsLeft:              cert.AsLeft,
		Temperature:         cert.Temperature,
		CalInterval:         cert.Interval,
		CertToolID:          cert.EquipmentID,
		CertSerial:          cert.SerialNumber,
		CertModel:           cert.ModelNumber,
		CertDescription:     cert.Description,
		Notes:               strings.Join(notes, " "),
		RequiresReplacement: result == domain.ResultFail,
		CreatedAt:           e.now().UTC(),
	}
	if cert.DocumentType == domain.DocumentTestReport {
		rec.ReportNumber = cert.CertNumber
	} else {
		rec.CertificateNumber = cert.CertNumber
	}
	switch {
	case cert.DueDate != nil:
		rec.DueDate = domain.DatePtr(*cert.DueDate)
	case nextDate != nil:
		rec.DueDate = domain.DatePtr(*nextDate)
	}

	if len(cert.TestPoints) > 0 {
		raw, err := json.Marshal(cert.TestPoints)
		if err != nil {
			return nil, fmt.Errorf("encode test points: %w", err)
		}
		rec.TestPoints = raw
	}
	if len(cert.StandardsUsed) > 0 {
		raw, err := json.Marshal(cert.StandardsUsed)
		if err != nil {
			return nil, fmt.Errorf("encode standards used: %w", err)
		}
		rec.StandardsUsed = raw
	}
	return rec, nil
}

// Reconcile writes the record, the tool update and the evidence attachment
// through uow.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, uow ports.UnitOfWork, in ReconcileInput) (*ReconcileOutcome, error) {
	if in.Tool == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reconcile", fmt.Errorf("tool is required"))
	}
	tool := in.Tool
	cert := in.Certificate
	calDate := e.CalibrationDate(cert)

	if cert.CertNumber != "" {
		exists, err := uow.Calibrations().Exists(ctx, tool.ID, cert.CertNumber, calDate)
		if err != nil {
			return nil, fmt.Errorf("check existing record: %w", err)
		}
		if exists {
			if err := e.attach(ctx, uow, tool.ID, "", cert, in.Evidence); err != nil {
				return nil, err
			}
			return &ReconcileOutcome{Tool: tool, Action: domain.ActionAlreadyRecorded}, nil
		}
	}

	upd := ProposeToolUpdate(*tool, cert, in.Strategy.DefaultSchedule, calDate, e.today(), e.dueSoonDays)
	if upd.SerialNumber != nil {
		_, taken, err := uow.Tools().FindFirst(ctx, domain.FieldSerialNumber, *upd.SerialNumber, domain.MatchEqualFold)
		if err != nil {
			return nil, fmt.Errorf("check serial backfill: %w", err)
		}
		if taken {
			upd.SerialNumber = nil
		}
	}

	updated := tool
	if !upd.IsEmpty() {
		var err error
		updated, err = uow.Tools().Update(ctx, tool.ID, upd)
		if err != nil {
			return nil, fmt.Errorf("update tool: %w", err)
		}
	}

	rec, err := e.BuildRecord(tool.ID, cert, in.Strategy, calDate, updated.NextCalibrationDate, in.Justification)
	if err != nil {
		return nil, err
	}
	if err := uow.Calibrations().Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create calibration record: %w", err)
	}
	if err := e.attach(ctx, uow, tool.ID, rec.ID, cert, in.Evidence); err != nil {
		return nil, err
	}
	return &ReconcileOutcome{Tool: updated, Record: rec, Update: upd, Action: domain.ActionLinked}, nil
}

func (e *ReconciliationEngine) attach(ctx context.Context, uow ports.UnitOfWork, toolID, recordID string, cert domain.NormalizedCertificate, ev Evidence) error {
	if ev.AttachmentID != "" {
		if err := uow.Attachments().Link(ctx, ev.AttachmentID, toolID, recordID); err != nil {
			return fmt.Errorf("link attachment: %w", err)
		}
		return nil
	}
	if ev.BlobID == "" {
		return nil
	}
	att := &domain.FileAttachment{
		ID:                  e.ids.NewID(),
		ToolID:              toolID,
		CalibrationRecordID: recordID,
		BlobID:              ev.BlobID,
		OriginalFilename:    ev.OriginalFilename,
		FileType:            domain.AttachmentCert,
		Notes:               attachmentNote(cert),
		UploadedAt:          e.now().UTC(),
	}
	if err := uow.Attachments().Create(ctx, att); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

func attachmentNote(cert domain.NormalizedCertificate) string {
	if cert.CertNumber == "" {
		return "Certificate"
	}
	if cert.DocumentType == domain.DocumentTestReport {
		return "Report " + cert.CertNumber
	}
	return "Cert #" + cert.CertNumber
}

func auditNote(prefix, tag string) string {
	if tag == "" {
		return prefix
	}
	return fmt.Sprintf("%s Matched via %s.", prefix, tag)
}
