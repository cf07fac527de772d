package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

const (
	lookupLimit       = 50
	manualLoggingNote = "Logged manually."
)

var lookupFields = []domain.IdentifierField{
	domain.FieldSerialNumber,
	domain.FieldToolIDNumber,
	domain.FieldLogNumber,
	domain.FieldStickerID,
	domain.FieldName,
}

// ToolService covers the tool registry operations around the import pipeline.
type ToolService struct {
	store       ports.ToolStore
	ids         ports.IdentifierGenerator
	now         func() time.Time
	dueSoonDays int
	logger      *slog.Logger
}

func NewToolService(store ports.ToolStore, ids ports.IdentifierGenerator, now func() time.Time, dueSoonDays int, logger *slog.Logger) *ToolService {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if now == nil {
		now = time.Now
	}
	if dueSoonDays <= 0 {
		dueSoonDays = domain.DefaultDueSoonDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolService{store: store, ids: ids, now: now, dueSoonDays: dueSoonDays, logger: logger}
}

func (s *ToolService) today() time.Time {
	return domain.DateOf(s.now())
}

// inTx runs fn in its own unit of work and commits when fn succeeds.
func (s *ToolService) inTx(ctx context.Context, op string, fn func(uow ports.UnitOfWork) error) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.Commit(); err != nil {
		_ = uow.Rollback()
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

func (s *ToolService) Create(ctx context.Context, tool domain.Tool) (*domain.Tool, error) {
	tool.Name = strings.TrimSpace(tool.Name)
	tool.SerialNumber = strings.TrimSpace(tool.SerialNumber)
	if tool.Name == "" || tool.SerialNumber == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create tool", errors.New("name and serial_number are required"))
	}
	if tool.Schedule == "" {
		tool.Schedule = domain.ScheduleAnnual
	}
	if _, ok := domain.ParseSchedule(string(tool.Schedule)); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create tool", fmt.Errorf("unknown schedule %q", tool.Schedule))
	}
	if tool.Status == "" {
		tool.Status = domain.ToolActive
	}
	if _, ok := domain.ParseToolStatus(string(tool.Status)); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create tool", fmt.Errorf("unknown status %q", tool.Status))
	}

	now := s.now().UTC()
	tool.ID = s.ids.NewID()
	tool.CreatedAt, tool.UpdatedAt = now, now
	if tool.LastCalibrationDate != nil {
		tool.LastCalibrationDate = domain.DatePtr(*tool.LastCalibrationDate)
		if tool.NextCalibrationDate == nil {
			tool.RecalculateNextDate()
		}
	}
	tool.RefreshStatus(s.today(), s.dueSoonDays)

	err := s.inTx(ctx, "create tool", func(uow ports.UnitOfWork) error {
		if tool.LogNumber == "" {
			logNumber, err := uniqueIdentifier(ctx, uow.Tools(), domain.FieldLogNumber, "TOOL-"+strings.ToUpper(s.ids.Suffix(6)))
			if err != nil {
				return err
			}
			tool.LogNumber = logNumber
		}
		return uow.Tools().Create(ctx, &tool)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tool_created", "tool_id", tool.ID, "log_number", tool.LogNumber)
	return &tool, nil
}

func (s *ToolService) Get(ctx context.Context, id string) (*domain.Tool, error) {
	var tool *domain.Tool
	err := s.inTx(ctx, "get tool", func(uow ports.UnitOfWork) error {
		var err error
		tool, err = uow.Tools().GetByID(ctx, id)
		return err
	})
	return tool, err
}

// History returns the tool with its calibration records, newest first.
func (s *ToolService) History(ctx context.Context, id string) (*domain.Tool, []domain.CalibrationRecord, error) {
	var (
		tool    *domain.Tool
		records []domain.CalibrationRecord
	)
	err := s.inTx(ctx, "tool history", func(uow ports.UnitOfWork) error {
		var err error
		if tool, err = uow.Tools().GetByID(ctx, id); err != nil {
			return err
		}
		records, err = uow.Calibrations().ListByTool(ctx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return tool, records, nil
}

// Delete removes the tool with its records and attachments.
func (s *ToolService) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, "delete tool", func(uow ports.UnitOfWork) error {
		return uow.Tools().Delete(ctx, id)
	})
}

// Lookup runs one case-insensitive containment search per query.
func (s *ToolService) Lookup(ctx context.Context, queries []string) ([]ports.LookupResult, error) {
	results := make([]ports.LookupResult, 0, len(queries))
	err := s.inTx(ctx, "lookup tools", func(uow ports.UnitOfWork) error {
		for _, q := range queries {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			tools, err := uow.Tools().Search(ctx, lookupFields, q, lookupLimit)
			if err != nil {
				return fmt.Errorf("lookup %q: %w", q, err)
			}
			if tools == nil {
				tools = []domain.Tool{}
			}
			results = append(results, ports.LookupResult{Query: q, Tools: tools})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Alerts lists overdue and due-soon tools that are not on the backup list,
// soonest first.
func (s *ToolService) Alerts(ctx context.Context) ([]ports.Alert, error) {
	var tools []domain.Tool
	err := s.inTx(ctx, "alerts", func(uow ports.UnitOfWork) error {
		var err error
		tools, err = uow.Tools().List(ctx, domain.ToolFilter{
			Statuses:      []domain.ToolStatus{domain.ToolOverdue, domain.ToolDueSoon},
			ExcludeBackup: true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	today := s.today()
	alerts := make([]ports.Alert, 0, len(tools))
	for _, tool := range tools {
		days, _ := tool.DaysUntilDue(today)
		alerts = append(alerts, ports.Alert{Tool: tool, DaysUntilDue: days})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DaysUntilDue < alerts[j].DaysUntilDue
	})
	return alerts, nil
}

// ChangeStatus sets a status by hand. Parked statuses put the tool on the
// backup list; the others take it off.
func (s *ToolService) ChangeStatus(ctx context.Context, id string, status domain.ToolStatus) (*domain.Tool, error) {
	if _, ok := domain.ParseToolStatus(string(status)); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "change status", fmt.Errorf("unknown status %q", status))
	}
	backup := domain.BacklistStatus(status)
	return s.update(ctx, "change status", id, domain.ToolUpdate{Status: &status, OnBackupList: &backup})
}

func (s *ToolService) MoveToBackup(ctx context.Context, id string) (*domain.Tool, error) {
	status := domain.ToolBackup
	backup := true
	return s.update(ctx, "move to backup", id, domain.ToolUpdate{Status: &status, OnBackupList: &backup})
}

// Restore takes a tool off the backup list and recomputes its status from its dates.
func (s *ToolService) Restore(ctx context.Context, id string) (*domain.Tool, error) {
	var updated *domain.Tool
	err := s.inTx(ctx, "restore tool", func(uow ports.UnitOfWork) error {
		tool, err := uow.Tools().GetByID(ctx, id)
		if err != nil {
			return err
		}
		projected := *tool
		projected.OnBackupList = false
		projected.Status = domain.ToolActive
		projected.RefreshStatus(s.today(), s.dueSoonDays)

		backup := false
		status := projected.Status
		updated, err = uow.Tools().Update(ctx, id, domain.ToolUpdate{OnBackupList: &backup, Status: &status})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ToolService) update(ctx context.Context, op, id string, upd domain.ToolUpdate) (*domain.Tool, error) {
	var updated *domain.Tool
	err := s.inTx(ctx, op, func(uow ports.UnitOfWork) error {
		var err error
		updated, err = uow.Tools().Update(ctx, id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tool_status_changed", "tool_id", id, "status", string(updated.Status))
	return updated, nil
}

// LogCalibration records a calibration entered by hand and moves the tool's
// dates forward when the entry is newer than the last calibration.
func (s *ToolService) LogCalibration(ctx context.Context, id string, entry ports.CalibrationEntry) (*domain.Tool, *domain.CalibrationRecord, error) {
	if entry.CalibrationDate.IsZero() {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "log calibration", errors.New("calibration_date is required"))
	}
	if entry.Result == "" {
		entry.Result = domain.ResultPass
	}
	if _, ok := domain.ParseCalibrationResult(string(entry.Result)); !ok {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "log calibration", fmt.Errorf("unknown result %q", entry.Result))
	}
	calDate := domain.DateOf(entry.CalibrationDate)

	var (
		updated *domain.Tool
		rec     *domain.CalibrationRecord
	)
	err := s.inTx(ctx, "log calibration", func(uow ports.UnitOfWork) error {
		tool, err := uow.Tools().GetByID(ctx, id)
		if err != nil {
			return err
		}

		projected := *tool
		var upd domain.ToolUpdate
		if tool.LastCalibrationDate == nil || calDate.After(domain.DateOf(*tool.LastCalibrationDate)) {
			upd.LastCalibrationDate = &calDate
			projected.LastCalibrationDate = &calDate
			if entry.DueDate != nil {
				next := domain.DateOf(*entry.DueDate)
				projected.NextCalibrationDate = &next
			} else {
				projected.RecalculateNextDate()
			}
			upd.NextCalibrationDate = projected.NextCalibrationDate
		}
		status := projected.Status
		if entry.Result == domain.ResultFail {
			status = domain.ToolOutOfCal
		} else if projected.RefreshStatus(s.today(), s.dueSoonDays) {
			status = projected.Status
		}
		if status != tool.Status {
			upd.Status = &status
		}

		updated = tool
		if !upd.IsEmpty() {
			if updated, err = uow.Tools().Update(ctx, id, upd); err != nil {
				return err
			}
		}

		notes := strings.TrimSpace(entry.Notes)
		if notes == "" {
			notes = manualLoggingNote
		}
		rec = &domain.CalibrationRecord{
			ID:                  s.ids.NewID(),
			ToolID:              id,
			CalibrationDate:     calDate,
			DueDate:             updated.NextCalibrationDate,
			PerformedBy:         entry.PerformedBy,
			CalibrationCompany:  entry.CalibrationCompany,
			CertificateNumber:   entry.CertificateNumber,
			Result:              entry.Result,
			Notes:               notes,
			RequiresReplacement: entry.Result == domain.ResultFail,
			CreatedAt:           s.now().UTC(),
		}
		if entry.DueDate != nil {
			rec.DueDate = domain.DatePtr(*entry.DueDate)
		}
		return uow.Calibrations().Create(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, rec, nil
}
