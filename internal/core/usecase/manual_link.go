package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

const defaultUnmatchedLimit = 100

// ManualLinkUseCase attaches an unmatched certificate to a chosen or new tool.
type ManualLinkUseCase struct {
	store     ports.ToolStore
	blobs     ports.BlobStore
	pipeline  *parsing.Pipeline
	engine    *ReconciliationEngine
	synth     *ToolSynthesizer
	pending   ports.PendingCertificates
	documents map[string]ports.PageTextExtractor
	logger    *slog.Logger
}

func NewManualLinkUseCase(
	store ports.ToolStore,
	blobs ports.BlobStore,
	pipeline *parsing.Pipeline,
	engine *ReconciliationEngine,
	synth *ToolSynthesizer,
	pending ports.PendingCertificates,
	documents map[string]ports.PageTextExtractor,
	logger *slog.Logger,
) *ManualLinkUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make(map[string]ports.PageTextExtractor, len(documents))
	for ext, extractor := range documents {
		normalized[normalizeExt(ext)] = extractor
	}
	return &ManualLinkUseCase{
		store:     store,
		blobs:     blobs,
		pipeline:  pipeline,
		engine:    engine,
		synth:     synth,
		pending:   pending,
		documents: normalized,
		logger:    logger,
	}
}

func (uc *ManualLinkUseCase) Link(ctx context.Context, req ports.LinkRequest) (*ports.LinkResult, error) {
	req.BlobID = strings.TrimSpace(req.BlobID)
	req.ToolID = strings.TrimSpace(req.ToolID)
	if req.BlobID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "manual link", errors.New("blob_id is required"))
	}
	if req.ToolID == "" && !req.CreateTool {
		return nil, domain.WrapError(domain.ErrInvalidInput, "manual link", errors.New("select a tool or create a new one"))
	}

	uow, err := uc.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin manual link: %w", err)
	}
	defer func() {
		_ = uow.Rollback()
	}()

	evidence := Evidence{BlobID: req.BlobID, OriginalFilename: req.OriginalFilename}
	att, err := uow.Attachments().GetByBlob(ctx, req.BlobID)
	switch {
	case err == nil:
		evidence.AttachmentID = att.ID
		if evidence.OriginalFilename == "" {
			evidence.OriginalFilename = att.OriginalFilename
		}
	case domain.IsNotFound(err):
	default:
		return nil, fmt.Errorf("load attachment: %w", err)
	}
	if evidence.OriginalFilename == "" {
		evidence.OriginalFilename = req.BlobID
	}

	cert := uc.certificate(ctx, req.BlobID, evidence.OriginalFilename)
	strategy := uc.pipeline.Extractor.Strategy(cert.Vendor)

	var tool *domain.Tool
	justification := manualLinkNote
	action := domain.ActionLinked
	if req.CreateTool {
		tool, err = uc.synth.FromCertificate(ctx, uow.Tools(), cert, strategy)
		if err != nil {
			return nil, err
		}
		justification += " Created new tool from certificate."
		action = domain.ActionCreated
	} else {
		tool, err = uow.Tools().GetByID(ctx, req.ToolID)
		if err != nil {
			return nil, err
		}
	}

	outcome, err := uc.engine.Reconcile(ctx, uow, ReconcileInput{
		Tool:          tool,
		Certificate:   cert,
		Strategy:      strategy,
		Justification: justification,
		Evidence:      evidence,
	})
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit manual link: %w", err)
	}
	if uc.pending != nil {
		uc.pending.Remove(req.BlobID)
	}
	if outcome.Action == domain.ActionAlreadyRecorded {
		action = outcome.Action
	}

	uc.logger.Info("certificate_linked",
		"blob_id", req.BlobID,
		"tool_id", outcome.Tool.ID,
		"action", string(action),
	)
	return &ports.LinkResult{Tool: outcome.Tool, Record: outcome.Record, Action: action}, nil
}

// certificate reads the parsed certificate from the pending cache, falling
// back to re-extracting the stored blob. An unreadable blob yields an empty
// certificate so the link still records evidence.
func (uc *ManualLinkUseCase) certificate(ctx context.Context, blobID, filename string) domain.NormalizedCertificate {
	if uc.pending != nil {
		if cert, ok := uc.pending.Get(blobID); ok {
			return cert
		}
	}
	extractor, ok := uc.documents[normalizeExt(filepath.Ext(filename))]
	if !ok {
		return domain.NormalizedCertificate{Vendor: domain.VendorGeneric, DocumentType: domain.DocumentCertificate}
	}
	text, err := uc.readText(ctx, extractor, blobID)
	if err != nil {
		uc.logger.Warn("certificate_reextract_failed", "blob_id", blobID, "error", err)
		return domain.NormalizedCertificate{Vendor: domain.VendorGeneric, DocumentType: domain.DocumentCertificate}
	}
	cert, _ := uc.pipeline.Parse(text, filename)
	return cert
}

func (uc *ManualLinkUseCase) readText(ctx context.Context, extractor ports.PageTextExtractor, blobID string) (string, error) {
	rc, err := uc.blobs.Open(ctx, blobID)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	doc, err := extractor.Open(data)
	if err != nil {
		return "", err
	}
	if doc.NumPages() == 0 {
		return "", nil
	}
	return parsing.RangeText(doc, domain.PageRange{Start: 0, End: doc.NumPages() - 1}), nil
}

// ListUnmatched returns certificate attachments that are not linked to any tool.
func (uc *ManualLinkUseCase) ListUnmatched(ctx context.Context, limit int) ([]domain.FileAttachment, error) {
	if limit <= 0 {
		limit = defaultUnmatchedLimit
	}
	uow, err := uc.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin list unmatched: %w", err)
	}
	defer func() {
		_ = uow.Rollback()
	}()
	items, err := uow.Attachments().ListUnlinked(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmatched: %w", err)
	}
	return items, nil
}
