package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type unitOfWork struct {
	tx         *sql.Tx
	dialect    Dialect
	now        func() time.Time
	savepoints int
	done       bool
}

func (u *unitOfWork) Tools() ports.ToolRepository {
	return &ToolRepository{tx: u.tx, dialect: u.dialect, now: u.now}
}

func (u *unitOfWork) Calibrations() ports.CalibrationRepository {
	return &CalibrationRepository{tx: u.tx, dialect: u.dialect, now: u.now}
}

func (u *unitOfWork) Attachments() ports.AttachmentRepository {
	return &AttachmentRepository{tx: u.tx, dialect: u.dialect, now: u.now}
}

func (u *unitOfWork) Scoped(ctx context.Context, fn func(ctx context.Context) error) error {
	u.savepoints++
	name := fmt.Sprintf("sp_%d", u.savepoints)
	if _, err := u.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		if _, relErr := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint: %w", relErr))
		}
		return err
	}
	if _, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// Rollback after Commit is a no-op.
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback unit of work: %w", err)
	}
	return nil
}
