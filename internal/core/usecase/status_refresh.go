package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

// StatusRefresher recomputes date-driven statuses as calendar days pass.
type StatusRefresher struct {
	store       ports.ToolStore
	now         func() time.Time
	dueSoonDays int
	logger      *slog.Logger
}

func NewStatusRefresher(store ports.ToolStore, now func() time.Time, dueSoonDays int, logger *slog.Logger) *StatusRefresher {
	if now == nil {
		now = time.Now
	}
	if dueSoonDays <= 0 {
		dueSoonDays = domain.DefaultDueSoonDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusRefresher{store: store, now: now, dueSoonDays: dueSoonDays, logger: logger}
}

// RefreshAll returns the number of tools whose status changed. out_of_cal
// stays until a passing calibration clears it.
func (r *StatusRefresher) RefreshAll(ctx context.Context) (int, error) {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin status refresh: %w", err)
	}
	defer func() {
		_ = uow.Rollback()
	}()

	tools, err := uow.Tools().List(ctx, domain.ToolFilter{
		Statuses:      []domain.ToolStatus{domain.ToolActive, domain.ToolDueSoon, domain.ToolOverdue},
		ExcludeBackup: true,
	})
	if err != nil {
		return 0, fmt.Errorf("list tools for refresh: %w", err)
	}

	today := domain.DateOf(r.now())
	changed := 0
	for i := range tools {
		tool := tools[i]
		if !tool.RefreshStatus(today, r.dueSoonDays) {
			continue
		}
		status := tool.Status
		if _, err := uow.Tools().Update(ctx, tool.ID, domain.ToolUpdate{Status: &status}); err != nil {
			return 0, fmt.Errorf("refresh tool %s: %w", tool.ID, err)
		}
		changed++
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("commit status refresh: %w", err)
	}
	if changed > 0 {
		r.logger.Info("tool_statuses_refreshed", "changed", changed)
	}
	return changed, nil
}
