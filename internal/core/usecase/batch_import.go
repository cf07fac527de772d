package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type BatchSettings struct {
	// AllowedExtensions are accepted at all; others are skipped as not allowed.
	AllowedExtensions []string
	// Documents opens certificate documents by lowercase extension without the dot.
	Documents map[string]ports.PageTextExtractor
}

// BatchImportUseCase ingests certificate documents and commits the whole
// batch as one unit of work.
type BatchImportUseCase struct {
	store     ports.ToolStore
	blobs     ports.BlobStore
	pipeline  *parsing.Pipeline
	matcher   *IdentifierMatcher
	engine    *ReconciliationEngine
	synth     *ToolSynthesizer
	publisher ports.EventPublisher
	metrics   ports.ImportMetrics
	pending   ports.PendingCertificates
	ids       ports.IdentifierGenerator
	now       func() time.Time
	logger    *slog.Logger

	allowed   map[string]struct{}
	documents map[string]ports.PageTextExtractor
}

func NewBatchImportUseCase(
	store ports.ToolStore,
	blobs ports.BlobStore,
	pipeline *parsing.Pipeline,
	matcher *IdentifierMatcher,
	engine *ReconciliationEngine,
	synth *ToolSynthesizer,
	publisher ports.EventPublisher,
	metrics ports.ImportMetrics,
	pending ports.PendingCertificates,
	ids ports.IdentifierGenerator,
	settings BatchSettings,
	logger *slog.Logger,
) *BatchImportUseCase {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(settings.AllowedExtensions))
	for _, ext := range settings.AllowedExtensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}
	documents := make(map[string]ports.PageTextExtractor, len(settings.Documents))
	for ext, extractor := range settings.Documents {
		documents[normalizeExt(ext)] = extractor
		allowed[normalizeExt(ext)] = struct{}{}
	}
	return &BatchImportUseCase{
		store:     store,
		blobs:     blobs,
		pipeline:  pipeline,
		matcher:   matcher,
		engine:    engine,
		synth:     synth,
		publisher: publisher,
		metrics:   metrics,
		pending:   pending,
		ids:       ids,
		now:       engine.now,
		logger:    logger,
		allowed:   allowed,
		documents: documents,
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// batchRun tracks blobs written while the unit of work is open.
type batchRun struct {
	uow     ports.UnitOfWork
	blobs   []string
	toolIDs map[string]struct{}
	// parked certificates reach the pending cache only after commit.
	parked map[string]domain.NormalizedCertificate
}

func (uc *BatchImportUseCase) Import(ctx context.Context, uploads []ports.Upload, opts ports.BatchOptions) (*domain.BatchResult, error) {
	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "batch import", errors.New("no files"))
	}
	started := time.Now()

	uow, err := uc.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	run := &batchRun{
		uow:     uow,
		toolIDs: map[string]struct{}{},
		parked:  map[string]domain.NormalizedCertificate{},
	}

	result := &domain.BatchResult{ID: uc.ids.NewID()}
	for _, upload := range uploads {
		if strings.TrimSpace(upload.Filename) == "" {
			continue
		}
		fileResult, err := uc.importFile(ctx, run, upload, opts)
		if err != nil {
			uc.abort(ctx, run)
			return nil, err
		}
		result.Files = append(result.Files, fileResult)
	}

	if err := uow.Commit(); err != nil {
		uc.abort(ctx, run)
		if uc.metrics != nil {
			uc.metrics.ObserveCommitFailure()
		}
		uc.logger.Error("batch_commit_failed", "batch_id", result.ID, "error", err)
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	if uc.pending != nil {
		for blobID, cert := range run.parked {
			uc.pending.Put(blobID, cert)
		}
	}

	result.Tally()
	result.CompletedAt = uc.now().UTC()
	if uc.metrics != nil {
		uc.metrics.ObserveBatch(*result, time.Since(started).Seconds())
	}
	uc.logger.Info("batch_imported",
		"batch_id", result.ID,
		"files", len(result.Files),
		"certificates", result.Totals.Certificates,
		"matched", result.Totals.Matched,
		"unmatched", result.Totals.Unmatched,
		"failed", result.Totals.Failed,
	)
	uc.publish(ctx, domain.BatchEvent{
		BatchID:     result.ID,
		Kind:        domain.BatchKindCertificates,
		Totals:      result.Totals,
		ToolIDs:     sortedKeys(run.toolIDs),
		CompletedAt: result.CompletedAt,
	})
	return result, nil
}

func (uc *BatchImportUseCase) abort(ctx context.Context, run *batchRun) {
	if err := run.uow.Rollback(); err != nil {
		uc.logger.Warn("batch_rollback_failed", "error", err)
	}
	for _, id := range run.blobs {
		if err := uc.blobs.Delete(ctx, id); err != nil {
			uc.logger.Warn("batch_blob_cleanup_failed", "blob_id", id, "error", err)
		}
	}
}

func (uc *BatchImportUseCase) publish(ctx context.Context, event domain.BatchEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishBatchCommitted(ctx, event); err != nil {
		uc.logger.Warn("batch_event_publish_failed", "batch_id", event.BatchID, "error", err)
	}
}

func (uc *BatchImportUseCase) storeBlob(ctx context.Context, run *batchRun, name string, data []byte) (string, error) {
	id, err := uc.blobs.Store(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	run.blobs = append(run.blobs, id)
	return id, nil
}

// importFile returns an error only for failures that must abort the batch.
func (uc *BatchImportUseCase) importFile(ctx context.Context, run *batchRun, upload ports.Upload, opts ports.BatchOptions) (domain.FileResult, error) {
	name := filepath.Base(upload.Filename)
	fr := domain.FileResult{Filename: name, Certificates: []domain.CertificateResult{}}

	ext := normalizeExt(filepath.Ext(name))
	if _, ok := uc.allowed[ext]; !ok {
		fr.Status, fr.Reason = domain.FileSkipped, domain.SkipNotAllowed
		return fr, nil
	}

	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return fr, fmt.Errorf("read upload %s: %w", name, err)
	}
	if fr.BlobID, err = uc.storeBlob(ctx, run, name, data); err != nil {
		return fr, err
	}

	extractor, ok := uc.documents[ext]
	if !ok {
		fr.Status, fr.Reason = domain.FileSkipped, domain.SkipNotPDF
		return fr, nil
	}
	doc, err := extractor.Open(data)
	if err != nil {
		uc.logger.Warn("certificate_document_unreadable", "filename", name, "error", err)
		fr.Status, fr.Reason = domain.FileSkipped, domain.SkipUnreadable
		return fr, nil
	}

	ranges := uc.pipeline.Detector.Detect(doc)
	if len(ranges) == 0 {
		fr.Status, fr.Reason = domain.FileSkipped, domain.SkipNoCertificates
		return fr, nil
	}

	fr.Status = domain.FileProcessed
	for i, r := range ranges {
		cr, err := uc.importCertificate(ctx, run, doc, name, i, r, opts)
		if err != nil {
			return fr, err
		}
		fr.Certificates = append(fr.Certificates, cr)
	}
	return fr, nil
}

func (uc *BatchImportUseCase) importCertificate(
	ctx context.Context,
	run *batchRun,
	doc ports.PageDocument,
	filename string,
	index int,
	r domain.PageRange,
	opts ports.BatchOptions,
) (domain.CertificateResult, error) {
	text := parsing.RangeText(doc, r)
	cert, strategy := uc.pipeline.Parse(text, filename)
	cr := domain.CertificateResult{
		Index:       index + 1,
		Pages:       fmt.Sprintf("%d-%d", r.Start+1, r.End+1),
		Range:       r,
		Certificate: cert,
	}

	sub, err := doc.ExtractRange(r.Start, r.End)
	if err != nil {
		uc.logger.Warn("certificate_split_failed", "filename", filename, "pages", cr.Pages, "error", err)
		cr.Action, cr.Error = domain.ActionFailed, fmt.Sprintf("split pages %s: %v", cr.Pages, err)
		return cr, nil
	}
	cr.OriginalFilename = fmt.Sprintf("cert_%d_%s", index+1, filename)
	if cr.BlobID, err = uc.storeBlob(ctx, run, cr.OriginalFilename, sub); err != nil {
		return cr, err
	}

	err = run.uow.Scoped(ctx, func(ctx context.Context) error {
		return uc.reconcileCertificate(ctx, run, &cr, cert, strategy, text, filename, opts)
	})
	if err != nil {
		uc.logger.Warn("certificate_import_failed", "filename", filename, "pages", cr.Pages, "error", err)
		cr.Matched, cr.ToolID, cr.ToolName, cr.ToolLogNumber, cr.RecordID = false, "", "", "", ""
		cr.MatchTag, cr.MatchRank = "", 0
		cr.Action, cr.Error = domain.ActionFailed, err.Error()

		// The savepoint rollback dropped everything for this certificate, so
		// park it again on its own to keep it reachable for a manual link.
		parkErr := run.uow.Scoped(ctx, func(ctx context.Context) error {
			return uc.parkUnmatched(ctx, run, &cr, cert, "Import failed: "+err.Error()+". ")
		})
		if parkErr != nil {
			uc.logger.Warn("certificate_park_failed", "filename", filename, "pages", cr.Pages, "error", parkErr)
		}
	}
	return cr, nil
}

func (uc *BatchImportUseCase) reconcileCertificate(
	ctx context.Context,
	run *batchRun,
	cr *domain.CertificateResult,
	cert domain.NormalizedCertificate,
	strategy parsing.Strategy,
	text, filename string,
	opts ports.BatchOptions,
) error {
	tools := run.uow.Tools()
	match, err := uc.matcher.Match(ctx, tools, cert)
	if err != nil {
		return err
	}
	if !match.Matched() && (cert.Vendor == domain.VendorGeneric || cert.DocumentType == domain.DocumentTestReport) {
		hits, err := uc.matcher.MatchTokens(ctx, tools, IdentifierTokens(filename, text))
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			match = hits[0]
		}
	}

	tool := match.Tool
	justification := auditNote(bulkImportNote, match.Tag)
	action := domain.ActionLinked
	if tool == nil {
		if !opts.CreateUnmatched {
			if err := uc.parkUnmatched(ctx, run, cr, cert, "Unmatched. "); err != nil {
				return err
			}
			cr.Action = domain.ActionUnmatched
			return nil
		}
		if tool, err = uc.synth.FromCertificate(ctx, tools, cert, strategy); err != nil {
			return err
		}
		justification = bulkImportNote + " Created new tool from certificate."
		action = domain.ActionCreated
	}

	outcome, err := uc.engine.Reconcile(ctx, run.uow, ReconcileInput{
		Tool:          tool,
		Certificate:   cert,
		Strategy:      strategy,
		Justification: justification,
		Evidence:      Evidence{BlobID: cr.BlobID, OriginalFilename: cr.OriginalFilename},
	})
	if err != nil {
		return err
	}
	if outcome.Action == domain.ActionAlreadyRecorded {
		action = outcome.Action
	}

	cr.Matched = true
	cr.MatchTag, cr.MatchRank = match.Tag, match.Rank
	cr.ToolID, cr.ToolName, cr.ToolLogNumber = outcome.Tool.ID, outcome.Tool.Name, outcome.Tool.LogNumber
	if outcome.Record != nil {
		cr.RecordID = outcome.Record.ID
	}
	cr.Action = action
	run.toolIDs[outcome.Tool.ID] = struct{}{}
	return nil
}

// parkUnmatched stores the certificate as an unlinked attachment so it stays
// available for a manual link.
func (uc *BatchImportUseCase) parkUnmatched(ctx context.Context, run *batchRun, cr *domain.CertificateResult, cert domain.NormalizedCertificate, note string) error {
	att := &domain.FileAttachment{
		ID:               uc.ids.NewID(),
		BlobID:           cr.BlobID,
		OriginalFilename: cr.OriginalFilename,
		FileType:         domain.AttachmentCert,
		Notes:            note + attachmentNote(cert),
		UploadedAt:       uc.now().UTC(),
	}
	if err := run.uow.Attachments().Create(ctx, att); err != nil {
		return fmt.Errorf("park unmatched certificate: %w", err)
	}
	run.parked[cr.BlobID] = cert
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
