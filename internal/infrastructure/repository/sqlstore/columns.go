package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02T15:04:05.000000Z"
)

type scanner interface {
	Scan(dest ...any) error
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func stampArg(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, ns.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", ns.String, err)
	}
	return &t, nil
}

func parseStamp(raw string) (time.Time, error) {
	t, err := time.Parse(stampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// escapeLike quotes LIKE wildcards for an ESCAPE '\' clause.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// identifierColumns whitelists the tool columns identifiers are matched against.
var identifierColumns = map[domain.IdentifierField]string{
	domain.FieldToolIDNumber: "tool_id_number",
	domain.FieldStickerID:    "sticker_id",
	domain.FieldLogNumber:    "log_number",
	domain.FieldSerialNumber: "serial_number",
	domain.FieldModelNumber:  "model_number",
	domain.FieldName:         "name",
}

func identifierColumn(field domain.IdentifierField) (string, error) {
	col, ok := identifierColumns[field]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "identifier column", fmt.Errorf("unknown field %q", field))
	}
	return col, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// writeError maps constraint violations to domain conflicts.
func writeError(op string, err error) error {
	if isUniqueViolation(err) {
		return domain.WrapError(domain.ErrConflict, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
