package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

var testNow = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	store := New(db, dialect)
	store.now = func() time.Time { return testNow }
	return store, mock, func() { _ = db.Close() }
}

func beginUoW(t *testing.T, store *Store, mock sqlmock.Sqlmock) ports.UnitOfWork {
	t.Helper()
	mock.ExpectBegin()
	uow, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return uow
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

var toolColumnNames = []string{
	"id", "name", "description", "tool_type", "manufacturer", "model_number", "serial_number", "log_number",
	"tool_id_number", "sticker_id", "location", "owner", "router", "schedule", "custom_interval_days", "status",
	"on_backup_list", "last_calibration_date", "next_calibration_date", "service_in_date", "service_out_date",
	"comments", "created_at", "updated_at",
}

func TestRebindSQLite(t *testing.T) {
	got := DialectSQLite.rebind("a = $1 AND b = $12")
	if got != "a = ?1 AND b = ?12" {
		t.Fatalf("rebind() = %q", got)
	}
	if got := DialectPostgres.rebind("a = $1"); got != "a = $1" {
		t.Fatalf("postgres rebind changed query: %q", got)
	}
}

func TestSQLiteDSNKeepsExistingQuery(t *testing.T) {
	cases := map[string]string{
		"data/calibration.db":       "data/calibration.db?" + sqlitePragmas,
		"file:x.db?cache=shared":    "file:x.db?cache=shared&" + sqlitePragmas,
		"file::memory:?mode=memory": "file::memory:?mode=memory&" + sqlitePragmas,
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	if d, err := ParseDialect(""); err != nil || d != DialectPostgres {
		t.Fatalf("ParseDialect(\"\") = %q, %v", d, err)
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestEnsureSchemaTakesAdvisoryLockOnPostgres(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tools").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestEnsureSchemaSkipsLockOnSQLite(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectSQLite)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tools").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetToolReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectQuery("SELECT id, name, description").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := uow.Tools().GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetToolScansDates(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	rows := sqlmock.NewRows(toolColumnNames).AddRow(
		"tool-1", "Caliper", "", "", "Mitutoyo", "CD-6", "SN-1", "LOG-1",
		"", "", "", "", "", "quarterly", int64(0), "due_soon",
		true, "2025-03-01", "2025-06-01", nil, nil,
		"", "2025-01-01T00:00:00.000000Z", "2025-03-01T10:00:00.000000Z",
	)
	mock.ExpectQuery("SELECT id, name, description").WithArgs("tool-1").WillReturnRows(rows)

	tool, err := uow.Tools().GetByID(context.Background(), "tool-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if tool.Schedule != domain.ScheduleQuarterly || tool.Status != domain.ToolDueSoon || !tool.OnBackupList {
		t.Fatalf("unexpected tool %+v", tool)
	}
	if tool.NextCalibrationDate == nil || !tool.NextCalibrationDate.Equal(domain.Date(2025, time.June, 1)) {
		t.Fatalf("unexpected next date %v", tool.NextCalibrationDate)
	}
	if tool.ServiceInDate != nil {
		t.Fatalf("expected nil service-in date")
	}
	if !tool.UpdatedAt.Equal(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected updated_at %v", tool.UpdatedAt)
	}
	expectationsMet(t, mock)
}

func TestCreateToolMapsUniqueViolationToConflict(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectExec("INSERT INTO tools").WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	tool := &domain.Tool{ID: "tool-1", Name: "Caliper", SerialNumber: "SN-1", LogNumber: "LOG-1"}
	err := uow.Tools().Create(context.Background(), tool)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !tool.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at defaulted to now, got %v", tool.CreatedAt)
	}
	expectationsMet(t, mock)
}

func TestFindFirstContainsEscapesWildcards(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectSQLite)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectQuery(`LOWER\(serial_number\) LIKE \?1 ESCAPE`).
		WithArgs(`%50\%\_a%`).
		WillReturnRows(sqlmock.NewRows(toolColumnNames))

	tool, ok, err := uow.Tools().FindFirst(context.Background(), domain.FieldSerialNumber, "50%_A", domain.MatchContainsFold)
	if err != nil {
		t.Fatalf("FindFirst() error = %v", err)
	}
	if ok || tool != nil {
		t.Fatalf("expected no match, got %+v", tool)
	}
	expectationsMet(t, mock)
}

func TestFindFirstSkipsBlankValues(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	_, ok, err := uow.Tools().FindFirst(context.Background(), domain.FieldLogNumber, "  ", domain.MatchEqual)
	if err != nil || ok {
		t.Fatalf("FindFirst(blank) = %v, %v", ok, err)
	}
	if _, _, err := uow.Tools().FindFirst(context.Background(), "comments", "x", domain.MatchEqual); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown field, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestListToolsBuildsFilter(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectQuery(`status IN \(\$1,\$2\)\s+AND on_backup_list = FALSE\s+ORDER BY created_at, id\s+LIMIT \$3`).
		WithArgs("active", "due_soon", 10).
		WillReturnRows(sqlmock.NewRows(toolColumnNames))

	tools, err := uow.Tools().List(context.Background(), domain.ToolFilter{
		Statuses:      []domain.ToolStatus{domain.ToolActive, domain.ToolDueSoon},
		ExcludeBackup: true,
		Limit:         10,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if tools == nil || len(tools) != 0 {
		t.Fatalf("expected empty non-nil list, got %+v", tools)
	}
	expectationsMet(t, mock)
}

func TestDeleteToolCascadesAndReportsMissing(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectExec("DELETE FROM file_attachments").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM calibration_records").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM tools").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := uow.Tools().Delete(context.Background(), "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCalibrationExistsFallsBackToReportNumber(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectQuery(`COALESCE\(NULLIF\(certificate_number, ''\), report_number\)`).
		WithArgs("tool-1", "C-1", "2025-05-20").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	ok, err := uow.Calibrations().Exists(context.Background(), "tool-1", "C-1", time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected existing record")
	}
	expectationsMet(t, mock)
}

func TestAttachmentLinkStoresNullRecord(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectExec("UPDATE file_attachments").
		WithArgs("att-1", "tool-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE file_attachments").
		WithArgs("att-2", "tool-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := uow.Attachments().Link(context.Background(), "att-1", "tool-1", ""); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if err := uow.Attachments().Link(context.Background(), "att-2", "tool-1", ""); !domain.IsKind(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestListUnlinkedScansNullTool(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	rows := sqlmock.NewRows([]string{"id", "tool_id", "calibration_record_id", "blob_id", "original_filename", "file_type", "notes", "uploaded_at"}).
		AddRow("att-1", nil, nil, "blob-1", "cert_1_scan.pdf", "cert", "Unmatched.", "2025-06-01T09:30:00.000000Z")
	mock.ExpectQuery("WHERE tool_id IS NULL").WithArgs(5).WillReturnRows(rows)

	atts, err := uow.Attachments().ListUnlinked(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListUnlinked() error = %v", err)
	}
	if len(atts) != 1 || atts[0].ToolID != "" || atts[0].BlobID != "blob-1" || !atts[0].UploadedAt.Equal(testNow) {
		t.Fatalf("unexpected attachments %+v", atts)
	}
	expectationsMet(t, mock)
}

func TestScopedRollsBackToSavepoint(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	mock.ExpectExec("^SAVEPOINT sp_1$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT sp_1$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^RELEASE SAVEPOINT sp_1$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^SAVEPOINT sp_2$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("^RELEASE SAVEPOINT sp_2$").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	boom := errors.New("boom")
	err := uow.Scoped(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected scoped error returned, got %v", err)
	}
	if err := uow.Scoped(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Scoped() error = %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("Rollback() after commit error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateToolRewritesRow(t *testing.T) {
	store, mock, done := newStoreWithMock(t, DialectPostgres)
	defer done()
	uow := beginUoW(t, store, mock)

	rows := sqlmock.NewRows(toolColumnNames).AddRow(
		"tool-1", "Caliper", "", "", "", "", "SN-1", "LOG-1",
		"", "", "", "", "", "annual", int64(0), "active",
		false, nil, nil, nil, nil,
		"", "2025-01-01T00:00:00.000000Z", "2025-01-01T00:00:00.000000Z",
	)
	mock.ExpectQuery("SELECT id, name").WithArgs("tool-1").WillReturnRows(rows)
	mock.ExpectExec("UPDATE tools").WillReturnResult(sqlmock.NewResult(0, 1))

	status := domain.ToolRetired
	last := domain.Date(2025, time.May, 1)
	tool, err := uow.Tools().Update(context.Background(), "tool-1", domain.ToolUpdate{Status: &status, LastCalibrationDate: &last})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if tool.Status != domain.ToolRetired || !tool.UpdatedAt.Equal(testNow) {
		t.Fatalf("unexpected updated tool %+v", tool)
	}
	if tool.LastCalibrationDate == nil || !tool.LastCalibrationDate.Equal(last) {
		t.Fatalf("unexpected last date %v", tool.LastCalibrationDate)
	}
	expectationsMet(t, mock)
}
