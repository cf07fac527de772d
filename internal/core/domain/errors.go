package domain

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsNotFound reports whether err marks any missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound) || errors.Is(err, ErrAttachmentNotFound)
}
