package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

var fixedNow = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type seqIDs struct {
	n      int
	suffix string
}

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func (g *seqIDs) Suffix(n int) string {
	s := g.suffix
	if s == "" {
		s = "abc123"
	}
	for len(s) < n {
		s += s
	}
	return s[:n]
}

type memState struct {
	tools       map[string]domain.Tool
	order       []string
	records     []domain.CalibrationRecord
	attachments []domain.FileAttachment
}

func (s memState) clone() memState {
	out := memState{
		tools:       make(map[string]domain.Tool, len(s.tools)),
		order:       append([]string(nil), s.order...),
		records:     append([]domain.CalibrationRecord(nil), s.records...),
		attachments: append([]domain.FileAttachment(nil), s.attachments...),
	}
	for k, v := range s.tools {
		out.tools[k] = v
	}
	return out
}

type memStore struct {
	mu         sync.Mutex
	state      memState
	commitErr  error
	// failSerial makes tool creation fail for that serial number.
	failSerial string
	commits    int
	rollbacks  int
}

func newMemStore(tools ...domain.Tool) *memStore {
	s := &memStore{state: memState{tools: map[string]domain.Tool{}}}
	for _, t := range tools {
		s.state.tools[t.ID] = t
		s.state.order = append(s.state.order, t.ID)
	}
	return s
}

func (s *memStore) Begin(context.Context) (ports.UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memUoW{store: s, state: s.state.clone()}, nil
}

func (s *memStore) tool(id string) (domain.Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.tools[id]
	return t, ok
}

func (s *memStore) toolCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.tools)
}

func (s *memStore) records() []domain.CalibrationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CalibrationRecord(nil), s.state.records...)
}

func (s *memStore) attachments() []domain.FileAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FileAttachment(nil), s.state.attachments...)
}

type memUoW struct {
	store *memStore
	state memState
	done  bool
}

func (u *memUoW) Tools() ports.ToolRepository { return memTools{u} }
func (u *memUoW) Calibrations() ports.CalibrationRepository { return memCalibrations{u} }
func (u *memUoW) Attachments() ports.AttachmentRepository { return memAttachments{u} }

func (u *memUoW) Scoped(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := u.state.clone()
	if err := fn(ctx); err != nil {
		u.state = snapshot
		return err
	}
	return nil
}

func (u *memUoW) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	u.store.state = u.state
	u.store.commits++
	return nil
}

func (u *memUoW) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.mu.Lock()
	u.store.rollbacks++
	u.store.mu.Unlock()
	return nil
}

type memTools struct{ u *memUoW }

func matches(value, candidate string, mode domain.MatchMode) bool {
	if value == "" {
		return false
	}
	switch mode {
	case domain.MatchEqual:
		return value == candidate
	case domain.MatchEqualFold:
		return strings.EqualFold(value, candidate)
	default:
		return strings.Contains(strings.ToLower(value), strings.ToLower(candidate))
	}
}

func (r memTools) Create(_ context.Context, tool *domain.Tool) error {
	if r.u.store.failSerial != "" && tool.SerialNumber == r.u.store.failSerial {
		return errors.New("constraint check failed")
	}
	for _, existing := range r.u.state.tools {
		if existing.SerialNumber == tool.SerialNumber || existing.LogNumber == tool.LogNumber {
			return domain.WrapError(domain.ErrConflict, "create tool", fmt.Errorf("duplicate %s", tool.SerialNumber))
		}
	}
	r.u.state.tools[tool.ID] = *tool
	r.u.state.order = append(r.u.state.order, tool.ID)
	return nil
}

func (r memTools) GetByID(_ context.Context, id string) (*domain.Tool, error) {
	t, ok := r.u.state.tools[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrToolNotFound, "get tool", fmt.Errorf("id %s", id))
	}
	return &t, nil
}

func (r memTools) Update(_ context.Context, id string, upd domain.ToolUpdate) (*domain.Tool, error) {
	t, ok := r.u.state.tools[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrToolNotFound, "update tool", fmt.Errorf("id %s", id))
	}
	upd.Apply(&t)
	t.UpdatedAt = fixedNow
	r.u.state.tools[id] = t
	return &t, nil
}

func (r memTools) Delete(_ context.Context, id string) error {
	if _, ok := r.u.state.tools[id]; !ok {
		return domain.WrapError(domain.ErrToolNotFound, "delete tool", fmt.Errorf("id %s", id))
	}
	delete(r.u.state.tools, id)
	order := r.u.state.order[:0]
	for _, v := range r.u.state.order {
		if v != id {
			order = append(order, v)
		}
	}
	r.u.state.order = order
	records := r.u.state.records[:0]
	for _, rec := range r.u.state.records {
		if rec.ToolID != id {
			records = append(records, rec)
		}
	}
	r.u.state.records = records
	atts := r.u.state.attachments[:0]
	for _, att := range r.u.state.attachments {
		if att.ToolID != id {
			atts = append(atts, att)
		}
	}
	r.u.state.attachments = atts
	return nil
}

func (r memTools) FindFirst(_ context.Context, field domain.IdentifierField, value string, mode domain.MatchMode) (*domain.Tool, bool, error) {
	for _, id := range r.u.state.order {
		t := r.u.state.tools[id]
		if matches(field.Value(&t), value, mode) {
			return &t, true, nil
		}
	}
	return nil, false, nil
}

func (r memTools) Search(_ context.Context, fields []domain.IdentifierField, value string, limit int) ([]domain.Tool, error) {
	var out []domain.Tool
	for _, id := range r.u.state.order {
		t := r.u.state.tools[id]
		for _, f := range fields {
			if matches(f.Value(&t), value, domain.MatchContainsFold) {
				out = append(out, t)
				break
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memTools) List(_ context.Context, filter domain.ToolFilter) ([]domain.Tool, error) {
	var out []domain.Tool
	for _, id := range r.u.state.order {
		t := r.u.state.tools[id]
		if filter.ExcludeBackup && t.OnBackupList {
			continue
		}
		if len(filter.Statuses) > 0 {
			keep := false
			for _, s := range filter.Statuses {
				if t.Status == s {
					keep = true
				}
			}
			if !keep {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

type memCalibrations struct{ u *memUoW }

func (r memCalibrations) Create(_ context.Context, rec *domain.CalibrationRecord) error {
	r.u.state.records = append(r.u.state.records, *rec)
	return nil
}

func (r memCalibrations) ListByTool(_ context.Context, toolID string) ([]domain.CalibrationRecord, error) {
	var out []domain.CalibrationRecord
	for _, rec := range r.u.state.records {
		if rec.ToolID == toolID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CalibrationDate.After(out[j].CalibrationDate) })
	return out, nil
}

func (r memCalibrations) Exists(_ context.Context, toolID, certNo string, date time.Time) (bool, error) {
	for _, rec := range r.u.state.records {
		number := rec.CertificateNumber
		if number == "" {
			number = rec.ReportNumber
		}
		if rec.ToolID == toolID && number == certNo && rec.CalibrationDate.Equal(domain.DateOf(date)) {
			return true, nil
		}
	}
	return false, nil
}

type memAttachments struct{ u *memUoW }

func (r memAttachments) Create(_ context.Context, att *domain.FileAttachment) error {
	r.u.state.attachments = append(r.u.state.attachments, *att)
	return nil
}

func (r memAttachments) GetByBlob(_ context.Context, blobID string) (*domain.FileAttachment, error) {
	for _, att := range r.u.state.attachments {
		if att.BlobID == blobID {
			return &att, nil
		}
	}
	return nil, domain.WrapError(domain.ErrAttachmentNotFound, "get attachment", fmt.Errorf("blob %s", blobID))
}

func (r memAttachments) Link(_ context.Context, id, toolID, recordID string) error {
	for i := range r.u.state.attachments {
		if r.u.state.attachments[i].ID == id {
			r.u.state.attachments[i].ToolID = toolID
			r.u.state.attachments[i].CalibrationRecordID = recordID
			return nil
		}
	}
	return domain.WrapError(domain.ErrAttachmentNotFound, "link attachment", fmt.Errorf("id %s", id))
}

func (r memAttachments) ListUnlinked(_ context.Context, limit int) ([]domain.FileAttachment, error) {
	var out []domain.FileAttachment
	for _, att := range r.u.state.attachments {
		if att.ToolID == "" {
			out = append(out, att)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memAttachments) Delete(_ context.Context, id string) error {
	for i := range r.u.state.attachments {
		if r.u.state.attachments[i].ID == id {
			r.u.state.attachments = append(r.u.state.attachments[:i], r.u.state.attachments[i+1:]...)
			return nil
		}
	}
	return domain.WrapError(domain.ErrAttachmentNotFound, "delete attachment", fmt.Errorf("id %s", id))
}

type memBlobs struct {
	mu      sync.Mutex
	n       int
	data    map[string][]byte
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Store(_ context.Context, originalName string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	id := fmt.Sprintf("blob-%d-%s", b.n, originalName)
	b.data[id] = data
	return id, nil
}

func (b *memBlobs) Open(_ context.Context, id string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[id]
	if !ok {
		return nil, fmt.Errorf("blob %s: not found", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// pagesDoc is a document whose pages are separated by form feeds.
type pagesDoc struct {
	pages    []string
	splitErr error
}

func (d pagesDoc) NumPages() int { return len(d.pages) }

func (d pagesDoc) PageText(i int) string {
	if i < 0 || i >= len(d.pages) {
		return ""
	}
	return d.pages[i]
}

func (d pagesDoc) ExtractRange(start, end int) ([]byte, error) {
	if d.splitErr != nil {
		return nil, d.splitErr
	}
	return []byte(strings.Join(d.pages[start:end+1], "\f")), nil
}

type pagesExtractor struct {
	splitErr error
}

func (e pagesExtractor) Open(data []byte) (ports.PageDocument, error) {
	if bytes.HasPrefix(data, []byte("%BROKEN")) {
		return nil, errors.New("malformed document")
	}
	return pagesDoc{pages: strings.Split(string(data), "\f"), splitErr: e.splitErr}, nil
}

type memPending struct {
	items map[string]domain.NormalizedCertificate
}

func newMemPending() *memPending {
	return &memPending{items: map[string]domain.NormalizedCertificate{}}
}

func (p *memPending) Put(id string, c domain.NormalizedCertificate) { p.items[id] = c }
func (p *memPending) Get(id string) (domain.NormalizedCertificate, bool) {
	c, ok := p.items[id]
	return c, ok
}
func (p *memPending) Remove(id string) { delete(p.items, id) }

type recordingPublisher struct {
	events []domain.BatchEvent
}

func (p *recordingPublisher) PublishBatchCommitted(_ context.Context, e domain.BatchEvent) error {
	p.events = append(p.events, e)
	return nil
}

type recordingMetrics struct {
	batches        int
	legacy         int
	commitFailures int
}

func (m *recordingMetrics) ObserveBatch(domain.BatchResult, float64) { m.batches++ }
func (m *recordingMetrics) ObserveLegacyImport(domain.LegacyImportResult) { m.legacy++ }
func (m *recordingMetrics) ObserveCommitFailure() { m.commitFailures++ }

type batchFixture struct {
	store     *memStore
	blobs     *memBlobs
	pending   *memPending
	publisher *recordingPublisher
	metrics   *recordingMetrics
	ids       *seqIDs
	batch     *BatchImportUseCase
	link      *ManualLinkUseCase
}

func newBatchFixture(extractor ports.PageTextExtractor, tools ...domain.Tool) *batchFixture {
	if extractor == nil {
		extractor = pagesExtractor{}
	}
	f := &batchFixture{
		store:     newMemStore(tools...),
		blobs:     newMemBlobs(),
		pending:   newMemPending(),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		ids:       &seqIDs{},
	}
	pipeline := parsing.NewPipeline(parsing.DefaultRules())
	engine := NewReconciliationEngine(f.ids, fixedClock, 30)
	synth := NewToolSynthesizer(f.ids, fixedClock)
	documents := map[string]ports.PageTextExtractor{"pdf": extractor}
	f.batch = NewBatchImportUseCase(
		f.store, f.blobs, pipeline, NewIdentifierMatcher(), engine, synth,
		f.publisher, f.metrics, f.pending, f.ids,
		BatchSettings{AllowedExtensions: []string{"pdf", "png", "txt"}, Documents: documents},
		nil,
	)
	f.link = NewManualLinkUseCase(f.store, f.blobs, pipeline, engine, synth, f.pending, documents, nil)
	return f
}

func pdfUpload(name string, pages ...string) ports.Upload {
	return ports.Upload{Filename: name, Body: strings.NewReader(strings.Join(pages, "\f"))}
}
