package usecase

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

var legacyHeader = []string{
	"DEPT", "Manufacturer", "Type/Model", "Asset / Serial No.", "Calibration Interval",
	"Calibration Company", "Status (Active/Inactive)", "Person Responsible", "Notes",
	"Calibration Date", "Calibration/Certificate",
}

func legacySheet(rows ...[]string) [][]string {
	out := [][]string{{"Calibration tracker export"}, legacyHeader}
	return append(out, rows...)
}

func newLegacyFixture(store *memStore, ids *seqIDs) (*LegacyImportUseCase, *recordingPublisher, *recordingMetrics) {
	publisher := &recordingPublisher{}
	metrics := &recordingMetrics{}
	readers := map[string]ports.TableReader{".csv": splitReader{}}
	return NewLegacyImportUseCase(store, readers, ids, publisher, metrics, fixedClock, 30, nil), publisher, metrics
}

// splitReader reads comma separated lines without quoting.
type splitReader struct{}

func (splitReader) ReadRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		rows = append(rows, strings.Split(line, ","))
	}
	return rows, nil
}

func findBySerial(t *testing.T, store *memStore, serial string) domain.Tool {
	t.Helper()
	uow, _ := store.Begin(context.Background())
	tool, ok, err := uow.Tools().FindFirst(context.Background(), domain.FieldSerialNumber, serial, domain.MatchEqual)
	if err != nil || !ok {
		t.Fatalf("tool with serial %q not found (err=%v)", serial, err)
	}
	return *tool
}

func TestLegacyImportSynthesizesSerial(t *testing.T) {
	store := newMemStore()
	ids := &seqIDs{suffix: "abc123"}
	uc, publisher, metrics := newLegacyFixture(store, ids)

	rows := legacySheet(
		[]string{"QA", "Snap-on", "Torque Wrench", "", "1 year", "Cal Tec", "Active", "J. Doe", "", "2025-03-01", "S-77"},
		[]string{"QA", "Mitutoyo", "Caliper", "SN-1", "6 months", "", "inactive", "", "", "", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", ""},
		[]string{"PROD", "", "", "", "", "", "", "", "", "", ""},
	)
	result, err := uc.ImportRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("ImportRows() error = %v", err)
	}
	if result.Imported != 2 || result.Updated != 0 || result.Skipped != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	wrench := findBySerial(t, store, "NOSN-QA-0003-abc123")
	if wrench.LogNumber != "CSV-QA-0003" || wrench.Name != "Torque Wrench" || wrench.StickerID != "S-77" {
		t.Fatalf("unexpected synthesized tool %+v", wrench)
	}
	if wrench.NextCalibrationDate == nil || !wrench.NextCalibrationDate.Equal(domain.Date(2026, time.March, 1)) {
		t.Fatalf("expected next calibration 2026-03-01, got %v", wrench.NextCalibrationDate)
	}
	if wrench.Status != domain.ToolActive || wrench.Owner != "J. Doe" {
		t.Fatalf("unexpected status/owner %s/%s", wrench.Status, wrench.Owner)
	}

	caliper := findBySerial(t, store, "SN-1")
	if caliper.Status != domain.ToolRetired || !caliper.OnBackupList || caliper.Schedule != domain.ScheduleSemiannual {
		t.Fatalf("unexpected caliper %+v", caliper)
	}

	records := store.records()
	if len(records) != 1 || records[0].Notes != legacyImportNote || records[0].CertificateNumber != "S-77" {
		t.Fatalf("unexpected legacy records %+v", records)
	}
	if len(publisher.events) != 1 || publisher.events[0].Kind != domain.BatchKindLegacy {
		t.Fatalf("unexpected events %+v", publisher.events)
	}
	if metrics.legacy != 1 {
		t.Fatalf("expected legacy metrics observed once")
	}

	again, err := uc.ImportRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("second ImportRows() error = %v", err)
	}
	if again.Imported != 0 || store.toolCount() != 2 {
		t.Fatalf("re-import created tools: %+v, count=%d", again, store.toolCount())
	}
}

func TestLegacyImportMergesExistingTool(t *testing.T) {
	existing := trackedTool("tool-1", "SN-9", "LOG-9")
	existing.Comments = "old note"
	existing.StickerID = "KEEP"
	store := newMemStore(existing)
	uc, _, _ := newLegacyFixture(store, &seqIDs{})

	result, err := uc.ImportRows(context.Background(), legacySheet(
		[]string{"QA", "Fluke", "Meter", "SN-9", "", "", "", "K. Lee", "recalibrated", "", "NEW-STICKER"},
	))
	if err != nil {
		t.Fatalf("ImportRows() error = %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected one update, got %+v", result)
	}
	tool, _ := store.tool("tool-1")
	if tool.Comments != "old note\nrecalibrated" || tool.Owner != "K. Lee" || tool.StickerID != "KEEP" {
		t.Fatalf("unexpected merged tool %+v", tool)
	}
}

func TestLegacyImportReportsRowErrors(t *testing.T) {
	store := newMemStore()
	store.failSerial = "SN-BAD"
	uc, _, _ := newLegacyFixture(store, &seqIDs{})

	result, err := uc.ImportRows(context.Background(), legacySheet(
		[]string{"QA", "Fluke", "Meter", "SN-BAD", "", "", "", "", "", "", ""},
		[]string{"QA", "Fluke", "Meter", "SN-OK", "", "", "", "", "", "", ""},
	))
	if err != nil {
		t.Fatalf("ImportRows() error = %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := result.Errors[0].String(); !strings.HasPrefix(got, "Row 3: ") {
		t.Fatalf("unexpected row error %q", got)
	}
	if store.toolCount() != 1 {
		t.Fatalf("expected only the good row committed, got %d tools", store.toolCount())
	}
}

func TestLegacyImportWithoutHeaderUsesFirstRow(t *testing.T) {
	if idx := headerRow([][]string{{"a", "b"}, {"c"}}); idx != 0 {
		t.Fatalf("headerRow() = %d, want 0", idx)
	}
	if idx := headerRow(legacySheet()); idx != 1 {
		t.Fatalf("headerRow() = %d, want 1", idx)
	}
}

func TestLegacyStatus(t *testing.T) {
	cases := []struct {
		status, notes, calDate, cert string
		want                         domain.ToolStatus
	}{
		{"Inactive", "", "", "", domain.ToolRetired},
		{"", "Missing since audit", "", "", domain.ToolNotInUse},
		{"", "", "Missing", "", domain.ToolNotInUse},
		{"", "", "", "missing", domain.ToolActive},
		{"", "handle broken", "", "", domain.ToolOutOfCal},
		{"", "out of service", "", "", domain.ToolRetired},
		{"", "", "", "Not in spec after calibration", domain.ToolOutOfCal},
		{"", "rejected by QA", "", "", domain.ToolOutOfCal},
		{"", "", "", "FAILED", domain.ToolOutOfCal},
		{"Active", "fine", "2025-01-02", "S-1", domain.ToolActive},
	}
	for _, tc := range cases {
		if got := legacyStatus(tc.status, tc.notes, tc.calDate, tc.cert); got != tc.want {
			t.Errorf("legacyStatus(%q, %q, %q, %q) = %s, want %s", tc.status, tc.notes, tc.calDate, tc.cert, got, tc.want)
		}
	}
}

func TestLegacyImportMissingCalibrationDateParksTool(t *testing.T) {
	store := newMemStore()
	uc, _, _ := newLegacyFixture(store, &seqIDs{})

	rows := legacySheet(
		[]string{"QA", "Mitutoyo", "Caliper", "SN-777", "", "", "", "", "", "missing", ""},
	)
	result, err := uc.ImportRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("ImportRows() error = %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	tool := findBySerial(t, store, "SN-777")
	if tool.Status != domain.ToolNotInUse || !tool.OnBackupList {
		t.Fatalf("expected not_in_use on the backup list, got status=%s backup=%v", tool.Status, tool.OnBackupList)
	}
	if tool.LastCalibrationDate != nil {
		t.Fatalf("missing marker must not parse as a date, got %v", tool.LastCalibrationDate)
	}
}

func TestLegacyImportFileRejectsUnknownExtension(t *testing.T) {
	uc, _, _ := newLegacyFixture(newMemStore(), &seqIDs{})
	_, err := uc.ImportFile(context.Background(), "tools.ods", strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLegacyImportFileUsesReaderByExtension(t *testing.T) {
	store := newMemStore()
	uc, _, _ := newLegacyFixture(store, &seqIDs{})
	body := "DEPT,Manufacturer,Type/Model,Asset / Serial No.\nQA,Fluke,Meter,SN-5\n"

	result, err := uc.ImportFile(context.Background(), "Tracker.CSV", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if tool := findBySerial(t, store, "SN-5"); tool.LogNumber != "CSV-QA-0002" {
		t.Fatalf("unexpected log number %q", tool.LogNumber)
	}
}
