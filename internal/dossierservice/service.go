// Package dossierservice coordinates the repository, the step codec, the
// summary extractors and the autosave scheduler behind one API used by the
// HTTP, MCP and CLI surfaces.
package dossierservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/autosave"
	"github.com/starford/dossier/internal/checksum"
	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/ident"
	"github.com/starford/dossier/internal/links"
	"github.com/starford/dossier/internal/metrics"
	"github.com/starford/dossier/internal/repository"
	"github.com/starford/dossier/internal/review"
	"github.com/starford/dossier/internal/stepcodec"
	"github.com/starford/dossier/internal/summary"
)

// Event kinds passed to the event hook.
const (
	EventCreated       = "created"
	EventUpdated       = "updated"
	EventDeleted       = "deleted"
	EventActiveChanged = "active.changed"
	// EventChanged reports an edit made outside this process.
	EventChanged = "changed"
)

// EventFunc receives change notifications. id is the affected dossier, or
// the new active id for EventActiveChanged.
type EventFunc func(kind, id string)

// Document is a dossier together with the ETag of its stored text.
type Document struct {
	Dossier *dossier.Dossier `json:"dossier"`
	ETag    string           `json:"etag"`
}

// StepView is one step of a dossier in its current generation.
type StepView struct {
	DossierID string            `json:"dossierId"`
	Step      dossier.Step      `json:"step"`
	Payload   stepcodec.Payload `json:"payload"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
	Complete  bool              `json:"complete"`
	Prev      string            `json:"prev,omitempty"`
	Next      string            `json:"next,omitempty"`
	Href      string            `json:"href"`
}

// CreateRequest describes a new dossier.
type CreateRequest struct {
	Demo bool              `json:"demo"`
	Meta dossier.MetaPatch `json:"meta"`
}

// Service is the application facade over the dossier store.
type Service struct {
	repo      *repository.Repository
	codec     *stepcodec.Codec
	extractor *summary.Extractor
	drafts    *autosave.Debouncer
	clock     dossier.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	onEvent   EventFunc

	reviewWindow time.Duration

	// mu serialises read-modify-write cycles on stored documents.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithDrafts sets the autosave scheduler used by DraftStep and DraftReview.
func WithDrafts(d *autosave.Debouncer) Option {
	return func(s *Service) { s.drafts = d }
}

// WithReviewDebounce sets the window of DraftReview.
func WithReviewDebounce(window time.Duration) Option {
	return func(s *Service) { s.reviewWindow = window }
}

// WithClock sets the time source.
func WithClock(c dossier.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents registers the change notification hook.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// New creates a Service.
func New(repo *repository.Repository, codec *stepcodec.Codec, extractor *summary.Extractor, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		codec:        codec,
		extractor:    extractor,
		clock:        dossier.SystemClock,
		logger:       slog.New(slog.DiscardHandler),
		reviewWindow: 350 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.drafts == nil {
		s.drafts = autosave.New(300*time.Millisecond, autosave.WithFireHook(func(string) { s.metrics.AutosaveFlush() }))
	}
	return s
}

func (s *Service) emit(kind, id string) {
	if s.onEvent != nil {
		s.onEvent(kind, id)
	}
}

func draftKey(id, part string) string {
	return id + "/" + part
}

// Repository exposes the underlying repository.
func (s *Service) Repository() *repository.Repository {
	return s.repo
}

// Extractor exposes the summary extractor.
func (s *Service) Extractor() *summary.Extractor {
	return s.extractor
}

// List returns dossier summaries, most recent first.
func (s *Service) List(ctx context.Context) []repository.Summary {
	return s.repo.List(ctx)
}

// Create stores a new dossier and makes it active.
func (s *Service) Create(ctx context.Context, req CreateRequest) *dossier.Dossier {
	s.mu.Lock()
	prev := s.repo.ActiveID(ctx)
	var d *dossier.Dossier
	if req.Demo {
		d = s.repo.CreateDemo(ctx)
	} else {
		d = s.repo.Create(ctx, req.Meta)
	}
	s.mu.Unlock()

	s.cancelDrafts(prev, d.ID)
	s.logger.Info("dossier created", slog.String("id", d.ID), slog.Bool("demo", req.Demo))
	s.emit(EventCreated, d.ID)
	s.emit(EventActiveChanged, d.ID)
	return d
}

// raw returns the stored text of dossier id. Ids that do not match the
// generated pattern are never looked up.
func (s *Service) raw(ctx context.Context, id string) (string, bool) {
	if !ident.Valid(id) {
		return "", false
	}
	return s.repo.Raw(ctx, id)
}

// Get returns dossier id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*dossier.Dossier, error) {
	var d *dossier.Dossier
	if raw, ok := s.raw(ctx, id); ok {
		d = dossier.Decode([]byte(raw))
	}
	if d == nil {
		return nil, fmt.Errorf("dossierservice: get %s: %w", id, apperr.ErrNotFound)
	}
	return d, nil
}

// Document returns dossier id with the ETag of its stored text.
func (s *Service) Document(ctx context.Context, id string) (*Document, error) {
	raw, ok := s.raw(ctx, id)
	if !ok {
		return nil, fmt.Errorf("dossierservice: get %s: %w", id, apperr.ErrNotFound)
	}
	d := dossier.Decode([]byte(raw))
	if d == nil {
		return nil, fmt.Errorf("dossierservice: get %s: %w", id, apperr.ErrNotFound)
	}
	return &Document{Dossier: d, ETag: checksum.Sum([]byte(raw))}, nil
}

// mutate applies fn to the stored dossier id under the service lock.
// ifMatch, when set, is an entity tag that must match the stored text.
func (s *Service) mutate(ctx context.Context, id, ifMatch string, fn func(d *dossier.Dossier) error) (*dossier.Dossier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.raw(ctx, id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !checksum.Matches(ifMatch, []byte(raw)) {
		return nil, apperr.ErrConflict
	}
	d := dossier.Decode([]byte(raw))
	if d == nil {
		return nil, apperr.ErrNotFound
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	s.repo.Upsert(ctx, d)
	return d, nil
}

// UpdateMeta applies patch to the metadata of dossier id.
func (s *Service) UpdateMeta(ctx context.Context, id string, patch dossier.MetaPatch, ifMatch string) (*dossier.Dossier, error) {
	d, err := s.mutate(ctx, id, ifMatch, func(d *dossier.Dossier) error {
		if patch.Empty() {
			return nil
		}
		patch.Apply(&d.Meta)
		dossier.Touch(d, s.clock())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dossierservice: update meta %s: %w", id, err)
	}
	s.emit(EventUpdated, id)
	return d, nil
}

// Delete removes dossier id and drops its pending drafts.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.raw(ctx, id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("dossierservice: delete %s: %w", id, apperr.ErrNotFound)
	}
	wasActive := s.repo.ActiveID(ctx) == id
	s.drafts.CancelPrefix(draftKey(id, ""))
	s.repo.Delete(ctx, id)
	next := s.repo.ActiveID(ctx)
	s.mu.Unlock()

	s.logger.Info("dossier deleted", slog.String("id", id))
	s.emit(EventDeleted, id)
	if wasActive {
		s.emit(EventActiveChanged, next)
	}
	return nil
}

// Steps returns the step catalog.
func (s *Service) Steps() []dossier.Step {
	return dossier.Steps()
}

// Sprints returns the sprint grouping.
func (s *Service) Sprints() []dossier.Sprint {
	return dossier.Sprints()
}

func (s *Service) view(d *dossier.Dossier, stepID string) (*StepView, error) {
	step, ok := dossier.LookupStep(stepID)
	if !ok {
		return nil, apperr.ErrUnknownStep
	}
	p, err := s.codec.Read(d, stepID)
	if err != nil {
		return nil, err
	}
	v := &StepView{
		DossierID: d.ID,
		Step:      step,
		Payload:   p,
		UpdatedAt: stepcodec.UpdatedAt(d, stepID),
		Complete:  s.extractor.StepComplete(d, stepID),
		Href:      links.StepHref(stepID, d.ID),
	}
	v.Prev, _ = dossier.PrevStep(stepID)
	v.Next, _ = dossier.NextStep(stepID)
	return v, nil
}

// ReadStep returns step stepID of dossier id in its current generation.
func (s *Service) ReadStep(ctx context.Context, id, stepID string) (*StepView, error) {
	if !dossier.KnownStep(stepID) {
		return nil, fmt.Errorf("dossierservice: read step %s: %w", stepID, apperr.ErrUnknownStep)
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(d, stepID)
}

// WriteStep validates body as a payload of stepID and stores it. A pending
// draft for the same step is dropped.
func (s *Service) WriteStep(ctx context.Context, id, stepID string, body []byte, ifMatch string) (*StepView, error) {
	p, err := stepcodec.Normalize(stepID, body)
	if err != nil {
		return nil, fmt.Errorf("dossierservice: write step %s: %w", stepID, err)
	}
	s.drafts.Cancel(draftKey(id, stepID))
	d, err := s.mutate(ctx, id, ifMatch, func(d *dossier.Dossier) error {
		return s.codec.Write(d, stepID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("dossierservice: write step %s: %w", stepID, err)
	}
	s.metrics.StepWrite(stepID)
	s.emit(EventUpdated, id)
	return s.view(d, stepID)
}

// DraftStep validates body now and schedules its write after the autosave
// window. Later drafts of the same step replace earlier ones. At fire time
// the document is re-read and only this step is replaced.
func (s *Service) DraftStep(ctx context.Context, id, stepID string, body []byte) error {
	p, err := stepcodec.Normalize(stepID, body)
	if err != nil {
		return fmt.Errorf("dossierservice: draft step %s: %w", stepID, err)
	}
	if _, ok := s.raw(ctx, id); !ok {
		return fmt.Errorf("dossierservice: draft step %s: %w", stepID, apperr.ErrNotFound)
	}
	s.drafts.Schedule(draftKey(id, stepID), func() {
		// The request context is gone by now.
		bg := context.WithoutCancel(ctx)
		if _, err := s.mutate(bg, id, "", func(d *dossier.Dossier) error {
			return s.codec.Write(d, stepID, p)
		}); err != nil {
			s.logger.Warn("autosave: draft dropped",
				slog.String("id", id), slog.String("step", stepID), slog.String("error", err.Error()))
			return
		}
		s.metrics.StepWrite(stepID)
		s.emit(EventUpdated, id)
	})
	return nil
}

// PendingDrafts returns the keys of scheduled drafts.
func (s *Service) PendingDrafts() []string {
	return s.drafts.Pending()
}

// FlushDrafts writes every pending draft now.
func (s *Service) FlushDrafts() int {
	return s.drafts.Flush()
}

// Close flushes pending drafts and stops scheduling new ones.
func (s *Service) Close() int {
	return s.drafts.Close()
}

// Visit records that stepID of dossier id was opened.
func (s *Service) Visit(ctx context.Context, id, stepID string) (*dossier.Dossier, error) {
	d, err := s.mutate(ctx, id, "", func(d *dossier.Dossier) error {
		return s.codec.Visit(d, stepID)
	})
	if err != nil {
		return nil, fmt.Errorf("dossierservice: visit %s: %w", stepID, err)
	}
	s.emit(EventUpdated, id)
	return d, nil
}

// Report returns every derived view of dossier id.
func (s *Service) Report(ctx context.Context, id string) (*summary.Report, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r := s.extractor.Report(d)
	return &r, nil
}

// PrintSummary renders the printable summary of dossier id.
func (s *Service) PrintSummary(ctx context.Context, id string) (string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.extractor.PrintSummary(d), nil
}

// InsertSnapshot renders the snapshot of stepID (1-4 or 1-6) into the gate
// review step and stores it. Repeating it replaces the earlier block.
func (s *Service) InsertSnapshot(ctx context.Context, id, stepID string) (*StepView, error) {
	d, err := s.mutate(ctx, id, "", func(d *dossier.Dossier) error {
		gate, err := s.extractor.InsertSnapshot(d, stepID)
		if err != nil {
			return err
		}
		return s.codec.Write(d, "1-10", gate)
	})
	if err != nil {
		return nil, fmt.Errorf("dossierservice: snapshot %s: %w", stepID, err)
	}
	s.metrics.StepWrite("1-10")
	s.emit(EventUpdated, id)
	return s.view(d, "1-10")
}

// Review returns the reviewer rubric of dossier id.
func (s *Service) Review(ctx context.Context, id string) (review.Review, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return review.Review{}, err
	}
	return review.Load(d, dossier.FormatTime(s.clock())), nil
}

// SaveReview stores r as the reviewer rubric of dossier id.
func (s *Service) SaveReview(ctx context.Context, id string, r review.Review) (review.Review, error) {
	s.drafts.Cancel(draftKey(id, "review"))
	d, err := s.mutate(ctx, id, "", func(d *dossier.Dossier) error {
		return review.Store(d, r, s.clock())
	})
	if err != nil {
		return review.Review{}, fmt.Errorf("dossierservice: save review %s: %w", id, err)
	}
	s.emit(EventUpdated, id)
	return review.Load(d, d.UpdatedAt), nil
}

// DraftReview schedules SaveReview after the review debounce window.
func (s *Service) DraftReview(ctx context.Context, id string, r review.Review) error {
	if _, ok := s.raw(ctx, id); !ok {
		return fmt.Errorf("dossierservice: draft review %s: %w", id, apperr.ErrNotFound)
	}
	s.drafts.ScheduleAfter(draftKey(id, "review"), s.reviewWindow, func() {
		bg := context.WithoutCancel(ctx)
		if _, err := s.mutate(bg, id, "", func(d *dossier.Dossier) error {
			return review.Store(d, r, s.clock())
		}); err != nil {
			s.logger.Warn("autosave: review draft dropped", slog.String("id", id), slog.String("error", err.Error()))
			return
		}
		s.emit(EventUpdated, id)
	})
	return nil
}

// Export returns the stored text of dossier id, its download filename and
// its checksum.
func (s *Service) Export(ctx context.Context, id string) (text, filename, sum string, err error) {
	text, ok := s.raw(ctx, id)
	if !ok {
		return "", "", "", fmt.Errorf("dossierservice: export %s: %w", id, apperr.ErrNotFound)
	}
	return text, s.repo.ExportFilename(ctx, id), checksum.Sum([]byte(text)), nil
}

// Import stores text as a dossier and makes it active.
func (s *Service) Import(ctx context.Context, text string, opts repository.ImportOptions) (*dossier.Dossier, error) {
	s.mu.Lock()
	prev := s.repo.ActiveID(ctx)
	_, existed := s.raw(ctx, strings.TrimSpace(importID(text)))
	d, err := s.repo.Import(ctx, text, opts)
	s.mu.Unlock()

	s.metrics.Import(err == nil)
	if err != nil {
		return nil, err
	}
	s.cancelDrafts(prev, d.ID)
	// Pending drafts for an overwritten document would clobber the import.
	s.drafts.CancelPrefix(draftKey(d.ID, ""))
	if existed && !opts.NewID {
		s.emit(EventUpdated, d.ID)
	} else {
		s.emit(EventCreated, d.ID)
	}
	s.emit(EventActiveChanged, d.ID)
	return d, nil
}

// importID peeks at the id carried by an import text.
func importID(text string) string {
	d := dossier.Decode([]byte(text))
	if d == nil {
		return ""
	}
	return d.ID
}

// Active returns the active dossier or apperr.ErrNotFound.
func (s *Service) Active(ctx context.Context) (*dossier.Dossier, error) {
	s.mu.Lock()
	d := s.repo.Active(ctx)
	s.mu.Unlock()
	if d == nil {
		return nil, fmt.Errorf("dossierservice: active: %w", apperr.ErrNotFound)
	}
	return d, nil
}

// SetActive makes dossier id active. Drafts of the previously active
// dossier are dropped.
func (s *Service) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.raw(ctx, id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("dossierservice: set active %s: %w", id, apperr.ErrNotFound)
	}
	prev := s.repo.ActiveID(ctx)
	s.repo.SetActiveID(ctx, id)
	s.mu.Unlock()

	if prev == id {
		return nil
	}
	s.cancelDrafts(prev, id)
	s.emit(EventActiveChanged, id)
	return nil
}

func (s *Service) cancelDrafts(prev, next string) {
	if prev == "" || prev == next {
		return
	}
	if n := s.drafts.CancelPrefix(draftKey(prev, "")); n > 0 {
		s.logger.Debug("autosave: dropped drafts of inactive dossier", slog.String("id", prev), slog.Int("count", n))
	}
}
