package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(raw string) (Dialect, error) {
	switch d := Dialect(raw); d {
	case DialectPostgres, DialectSQLite:
		return d, nil
	case "":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", raw)
}

var positional = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into the numbered ?N form sqlite accepts.
func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	return positional.ReplaceAllString(query, "?$1")
}

// Store is the SQL-backed entity store. Every mutation goes through a unit of work.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Open connects to postgres through pgx or to a sqlite file through modernc.
func Open(dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("sql open: %w", err)
		}
		// One writer; keeps in-memory databases alive for the pool lifetime.
		db.SetMaxOpenConns(1)
	default:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("sql open: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return New(db, dialect), nil
}

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// sqliteDSN appends the connection pragmas, keeping any query the DSN already has.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.dialect == DialectPostgres {
		// Serialize bootstrap DDL across api/worker/importer startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025060101)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Dates are stored as YYYY-MM-DD text and timestamps as fixed-width UTC text
// so both dialects share one schema and sort lexically.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS tools (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tool_type TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL DEFAULT '',
	model_number TEXT NOT NULL DEFAULT '',
	serial_number TEXT NOT NULL UNIQUE,
	log_number TEXT NOT NULL UNIQUE,
	tool_id_number TEXT NOT NULL DEFAULT '',
	sticker_id TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	router TEXT NOT NULL DEFAULT '',
	schedule TEXT NOT NULL,
	custom_interval_days INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	on_backup_list BOOLEAN NOT NULL DEFAULT FALSE,
	last_calibration_date TEXT,
	next_calibration_date TEXT,
	service_in_date TEXT,
	service_out_date TEXT,
	comments TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tools_status ON tools(status);
CREATE INDEX IF NOT EXISTS idx_tools_next_calibration ON tools(next_calibration_date);
CREATE INDEX IF NOT EXISTS idx_tools_created_at ON tools(created_at, id);

CREATE TABLE IF NOT EXISTS calibration_records (
	id TEXT PRIMARY KEY,
	tool_id TEXT NOT NULL REFERENCES tools(id) ON DELETE CASCADE,
	calibration_date TEXT NOT NULL,
	due_date TEXT,
	performed_by TEXT NOT NULL DEFAULT '',
	calibration_company TEXT NOT NULL DEFAULT '',
	source_company TEXT NOT NULL DEFAULT '',
	certificate_number TEXT NOT NULL DEFAULT '',
	report_number TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL,
	as_found TEXT NOT NULL DEFAULT '',
	as_left TEXT NOT NULL DEFAULT '',
	temperature TEXT NOT NULL DEFAULT '',
	cal_interval TEXT NOT NULL DEFAULT '',
	cert_tool_id TEXT NOT NULL DEFAULT '',
	cert_serial TEXT NOT NULL DEFAULT '',
	cert_model TEXT NOT NULL DEFAULT '',
	cert_description TEXT NOT NULL DEFAULT '',
	test_points TEXT,
	standards_used TEXT,
	notes TEXT NOT NULL DEFAULT '',
	requires_replacement BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calibration_records_tool ON calibration_records(tool_id, calibration_date);

CREATE TABLE IF NOT EXISTS file_attachments (
	id TEXT PRIMARY KEY,
	tool_id TEXT REFERENCES tools(id) ON DELETE CASCADE,
	calibration_record_id TEXT REFERENCES calibration_records(id) ON DELETE SET NULL,
	blob_id TEXT NOT NULL UNIQUE,
	original_filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	uploaded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_attachments_tool ON file_attachments(tool_id);
`

func (s *Store) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	return &unitOfWork{tx: tx, dialect: s.dialect, now: s.now}, nil
}
