package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

const legacyImportNote = "Imported from legacy spreadsheet."

type legacyColumn string

const (
	colDept         legacyColumn = "dept"
	colManufacturer legacyColumn = "manufacturer"
	colTypeModel    legacyColumn = "type_model"
	colSerial       legacyColumn = "serial"
	colInterval     legacyColumn = "interval"
	colCompany      legacyColumn = "company"
	colInService    legacyColumn = "in_service"
	colOutService   legacyColumn = "out_service"
	colStatus       legacyColumn = "status"
	colOwner        legacyColumn = "owner"
	colNotes        legacyColumn = "notes"
	colCalDate      legacyColumn = "cal_date"
	colCertificate  legacyColumn = "certificate"
)

// legacyHeaders lists accepted header spellings per column, normalized by
// normalizeHeader. Earlier spellings win when a sheet carries several.
var legacyHeaders = map[legacyColumn][]string{
	colDept:         {"dept", "department"},
	colManufacturer: {"manufacturer"},
	colTypeModel:    {"type/model"},
	colSerial:       {"asset/serial no.", "asset/serial no", "asset/serial no..", "serial no.", "serial number", "asset"},
	colInterval:     {"calibration interval"},
	colCompany:      {"calibration company"},
	colInService:    {"in-service date"},
	colOutService:   {"out-of-service date"},
	colStatus:       {"status (active/inactive)", "status"},
	colOwner:        {"person responsible (if applicable)", "person responsible"},
	colNotes:        {"notes"},
	colCalDate:      {"calibration date"},
	colCertificate:  {"calibration/certificate"},
}

var stickerPlaceholders = map[string]struct{}{
	"x":                             {},
	"missing":                       {},
	"not checked":                   {},
	"not in spec after calibration": {},
	"checked but broken":            {},
	"found":                         {},
}

func normalizeHeader(raw string) string {
	s := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	s = strings.ReplaceAll(s, " /", "/")
	return strings.ReplaceAll(s, "/ ", "/")
}

// headerRow is the first row naming the department, manufacturer and
// type/model columns, or row 0.
func headerRow(rows [][]string) int {
	for idx, row := range rows {
		var dept, manufacturer, typeModel bool
		for _, cell := range row {
			switch h := normalizeHeader(cell); {
			case h == "dept" || h == "department":
				dept = true
			case h == "manufacturer":
				manufacturer = true
			case h == "type/model":
				typeModel = true
			}
		}
		if dept && manufacturer && typeModel {
			return idx
		}
	}
	return 0
}

type legacyRow struct {
	num    int
	values map[legacyColumn]string
}

func (r legacyRow) get(col legacyColumn) string {
	return strings.TrimSpace(r.values[col])
}

func columnIndex(header []string) map[legacyColumn]int {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		h := normalizeHeader(cell)
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}
	index := make(map[legacyColumn]int, len(legacyHeaders))
	for col, spellings := range legacyHeaders {
		for _, spelling := range spellings {
			if i, ok := positions[spelling]; ok {
				index[col] = i
				break
			}
		}
	}
	return index
}

type rowOutcome int

const (
	rowIgnored rowOutcome = iota
	rowImported
	rowUpdated
	rowSkipped
)

// LegacyImportUseCase loads tools from the legacy tracking spreadsheet.
type LegacyImportUseCase struct {
	store     ports.ToolStore
	readers   map[string]ports.TableReader
	ids       ports.IdentifierGenerator
	publisher ports.EventPublisher
	metrics   ports.ImportMetrics
	now       func() time.Time
	dueSoon   int
	logger    *slog.Logger
}

func NewLegacyImportUseCase(
	store ports.ToolStore,
	readers map[string]ports.TableReader,
	ids ports.IdentifierGenerator,
	publisher ports.EventPublisher,
	metrics ports.ImportMetrics,
	now func() time.Time,
	dueSoonDays int,
	logger *slog.Logger,
) *LegacyImportUseCase {
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
	normalized := make(map[string]ports.TableReader, len(readers))
	for ext, reader := range readers {
		normalized[normalizeExt(ext)] = reader
	}
	return &LegacyImportUseCase{
		store:     store,
		readers:   normalized,
		ids:       ids,
		publisher: publisher,
		metrics:   metrics,
		now:       now,
		dueSoon:   dueSoonDays,
		logger:    logger,
	}
}

// ImportFile picks the table reader by the file extension.
func (uc *LegacyImportUseCase) ImportFile(ctx context.Context, filename string, body io.Reader) (*domain.LegacyImportResult, error) {
	ext := normalizeExt(filepath.Ext(filename))
	reader, ok := uc.readers[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "legacy import", fmt.Errorf("unsupported file type %q", ext))
	}
	rows, err := reader.ReadRows(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "legacy import", err)
	}
	return uc.ImportRows(ctx, rows)
}

func (uc *LegacyImportUseCase) ImportRows(ctx context.Context, rows [][]string) (*domain.LegacyImportResult, error) {
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "legacy import", errors.New("file is empty"))
	}
	headerIdx := headerRow(rows)
	index := columnIndex(rows[headerIdx])

	uow, err := uc.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin legacy import: %w", err)
	}
	toolIDs := map[string]struct{}{}
	result := &domain.LegacyImportResult{}

	for i, cells := range rows[headerIdx+1:] {
		row := legacyRow{num: headerIdx + i + 2, values: make(map[legacyColumn]string, len(index))}
		for col, pos := range index {
			if pos < len(cells) {
				row.values[col] = cells[pos]
			}
		}

		var outcome rowOutcome
		err := uow.Scoped(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = uc.importRow(ctx, uow, row, toolIDs)
			return err
		})
		if err != nil {
			result.Errors = append(result.Errors, domain.RowError{Row: row.num, Message: err.Error()})
			result.Skipped++
			continue
		}
		switch outcome {
		case rowImported:
			result.Imported++
		case rowUpdated:
			result.Updated++
		case rowSkipped:
			result.Skipped++
		}
	}

	if err := uow.Commit(); err != nil {
		_ = uow.Rollback()
		if uc.metrics != nil {
			uc.metrics.ObserveCommitFailure()
		}
		uc.logger.Error("legacy_import_commit_failed", "error", err)
		return nil, fmt.Errorf("commit legacy import: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.ObserveLegacyImport(*result)
	}
	uc.logger.Info("legacy_imported",
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	if uc.publisher != nil {
		event := domain.BatchEvent{
			BatchID:     uc.ids.NewID(),
			Kind:        domain.BatchKindLegacy,
			ToolIDs:     sortedKeys(toolIDs),
			CompletedAt: uc.now().UTC(),
		}
		if err := uc.publisher.PublishBatchCommitted(ctx, event); err != nil {
			uc.logger.Warn("batch_event_publish_failed", "batch_id", event.BatchID, "error", err)
		}
	}
	return result, nil
}

func (uc *LegacyImportUseCase) importRow(ctx context.Context, uow ports.UnitOfWork, row legacyRow, toolIDs map[string]struct{}) (rowOutcome, error) {
	dept := row.get(colDept)
	manufacturer := row.get(colManufacturer)
	typeModel := row.get(colTypeModel)
	assetSerial := row.get(colSerial)

	if strings.EqualFold(dept, "dept") {
		return rowIgnored, nil
	}
	if assetSerial == "" && typeModel == "" && manufacturer == "" {
		if dept == "" {
			return rowIgnored, nil
		}
		return rowSkipped, nil
	}

	prefix := deptPrefix(dept)
	tools := uow.Tools()
	notes := row.get(colNotes)
	cert := row.get(colCertificate)
	person := row.get(colOwner)

	serial := assetSerial
	if serial == "" {
		serial = fmt.Sprintf("NOSN-%s-%04d-%s", prefix, row.num, uc.ids.Suffix(6))
	}
	existing, found, err := tools.FindFirst(ctx, domain.FieldSerialNumber, serial, domain.MatchEqual)
	if err != nil {
		return rowSkipped, fmt.Errorf("lookup serial: %w", err)
	}
	if found {
		return uc.mergeExisting(ctx, tools, existing, notes, cert, person, toolIDs)
	}

	logNumber, err := uniqueIdentifier(ctx, tools, domain.FieldLogNumber, fmt.Sprintf("CSV-%s-%04d", prefix, row.num))
	if err != nil {
		return rowSkipped, err
	}

	schedule, customDays := parsing.LegacySchedule(row.get(colInterval))
	status := legacyStatus(row.get(colStatus), notes, row.get(colCalDate), cert)
	name := typeModel
	if name == "" {
		name = manufacturer + " instrument"
	}
	sticker := ""
	if !isStickerPlaceholder(cert) {
		sticker = cert
	}

	now := uc.now().UTC()
	tool := &domain.Tool{
		ID:                 uc.ids.NewID(),
		Name:               name,
		ToolType:           typeModel,
		Manufacturer:       manufacturer,
		SerialNumber:       serial,
		LogNumber:          logNumber,
		StickerID:          sticker,
		Location:           dept,
		Owner:              person,
		Schedule:           schedule,
		CustomIntervalDays: customDays,
		Status:             status,
		OnBackupList:       status == domain.ToolRetired || status == domain.ToolNotInUse || status == domain.ToolOutOfCal,
		Comments:           notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if d, ok := parsing.ParseLooseDate(row.get(colInService)); ok {
		tool.ServiceInDate = &d
	}
	if d, ok := parsing.ParseLooseDate(row.get(colOutService)); ok {
		tool.ServiceOutDate = &d
	}
	calDate, hasCal := parsing.ParseLooseDate(row.get(colCalDate))
	if !hasCal {
		calDate, hasCal = parsing.ParseLooseDate(notes)
	}
	if hasCal {
		tool.LastCalibrationDate = &calDate
		tool.RecalculateNextDate()
		tool.RefreshStatus(now, uc.dueSoon)
	}

	if err := tools.Create(ctx, tool); err != nil {
		return rowSkipped, fmt.Errorf("create tool: %w", err)
	}
	if hasCal {
		if err := uow.Calibrations().Create(ctx, uc.legacyRecord(tool, calDate, row.get(colCompany), cert, now)); err != nil {
			return rowSkipped, fmt.Errorf("create calibration record: %w", err)
		}
	}
	toolIDs[tool.ID] = struct{}{}
	return rowImported, nil
}

// mergeExisting only fills gaps on a tool that is already tracked.
func (uc *LegacyImportUseCase) mergeExisting(
	ctx context.Context,
	tools ports.ToolRepository,
	existing *domain.Tool,
	notes, cert, person string,
	toolIDs map[string]struct{},
) (rowOutcome, error) {
	var upd domain.ToolUpdate
	if notes != "" && !strings.Contains(existing.Comments, notes) {
		comments := notes
		if existing.Comments != "" {
			comments = existing.Comments + "\n" + notes
		}
		upd.Comments = &comments
	}
	if cert != "" && existing.StickerID == "" && !isStickerPlaceholder(cert) {
		upd.StickerID = &cert
	}
	if person != "" && existing.Owner == "" {
		upd.Owner = &person
	}
	if upd.IsEmpty() {
		return rowSkipped, nil
	}
	if _, err := tools.Update(ctx, existing.ID, upd); err != nil {
		return rowSkipped, fmt.Errorf("update tool: %w", err)
	}
	toolIDs[existing.ID] = struct{}{}
	return rowUpdated, nil
}

func (uc *LegacyImportUseCase) legacyRecord(tool *domain.Tool, calDate time.Time, company, cert string, now time.Time) *domain.CalibrationRecord {
	result := domain.ResultPass
	lowerCert := strings.ToLower(cert)
	if strings.Contains(lowerCert, "fail") || strings.Contains(lowerCert, "not in spec") {
		result = domain.ResultFail
	}
	rec := &domain.CalibrationRecord{
		ID:                  uc.ids.NewID(),
		ToolID:              tool.ID,
		CalibrationDate:     calDate,
		CalibrationCompany:  company,
		SourceCompany:       company,
		Result:              result,
		Notes:               legacyImportNote,
		RequiresReplacement: result == domain.ResultFail,
		CreatedAt:           now,
	}
	if tool.NextCalibrationDate != nil {
		rec.DueDate = domain.DatePtr(*tool.NextCalibrationDate)
	}
	if !isStickerPlaceholder(cert) {
		rec.CertificateNumber = cert
	}
	return rec
}

// legacyStatus applies the spreadsheet status rules in order.
func legacyStatus(statusRaw, notes, calDate, cert string) domain.ToolStatus {
	status := strings.ToLower(statusRaw)
	notes = strings.ToLower(notes)
	cert = strings.ToLower(cert)
	switch {
	case status == "inactive" || status == "retired":
		return domain.ToolRetired
	case strings.Contains(notes, "missing") || strings.EqualFold(strings.TrimSpace(calDate), "missing"):
		return domain.ToolNotInUse
	case strings.Contains(notes, "broken") || strings.Contains(notes, "damaged"):
		return domain.ToolOutOfCal
	case strings.Contains(notes, "out of service"):
		return domain.ToolRetired
	case strings.Contains(notes, "not in spec") || strings.Contains(cert, "not in spec"):
		return domain.ToolOutOfCal
	case strings.Contains(notes, "rejected"):
		return domain.ToolOutOfCal
	case strings.Contains(cert, "fail"):
		return domain.ToolOutOfCal
	}
	return domain.ToolActive
}

func isStickerPlaceholder(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return true
	}
	_, ok := stickerPlaceholders[value]
	return ok
}

func deptPrefix(dept string) string {
	runes := []rune(strings.ToUpper(strings.TrimSpace(dept)))
	if len(runes) == 0 {
		return "UNK"
	}
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}
