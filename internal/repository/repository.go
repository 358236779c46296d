// Package repository stores dossiers in a kv.Safe store and maintains the
// single active-dossier pointer.
//
// Every read tolerates missing, malformed or wrongly shaped entries by
// reporting them as absent. Import is the only operation that returns an
// error to the caller.
package repository

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/ident"
	"github.com/starford/dossier/internal/kv"
	"github.com/starford/dossier/internal/links"
)

// DefaultNamespace prefixes every key written by the repository.
const DefaultNamespace = "rhs"

// legacyActiveKeys held the active pointer in earlier generations. They are
// read, never written.
var legacyActiveKeys = []string{
	"activeDossierId",
	"rhs.activeDossierId",
	"rapidHealthSandbox.activeDossierId",
	"dossier.activeId",
}

// IDSource allocates dossier identifiers.
type IDSource interface {
	New() string
}

// Summary is the lightweight projection returned by List.
type Summary struct {
	ID                string `json:"id"`
	ProjectName       string `json:"projectName"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
	OneLineProblem    string `json:"oneLineProblem"`
	LastVisitedStepID string `json:"lastVisitedStepId,omitempty"`
	ResumeHref        string `json:"resumeHref"`
}

// Migrator brings every stored step of a dossier to its current generation.
type Migrator interface {
	MigrateAll(d *dossier.Dossier) ([]string, error)
}

// Repository is CRUD over dossiers plus the active pointer.
type Repository struct {
	store    *kv.Safe
	ns       string
	ids      IDSource
	clock    dossier.Clock
	logger   *slog.Logger
	migrator Migrator
}

// Option configures a Repository.
type Option func(*Repository)

// WithNamespace overrides the key namespace.
func WithNamespace(ns string) Option {
	return func(r *Repository) {
		if ns != "" {
			r.ns = ns
		}
	}
}

// WithIDs sets the identifier source.
func WithIDs(ids IDSource) Option {
	return func(r *Repository) { r.ids = ids }
}

// WithClock sets the time source.
func WithClock(c dossier.Clock) Option {
	return func(r *Repository) { r.clock = c }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithMigrator migrates step payloads of imported documents before they are
// stored.
func WithMigrator(m Migrator) Option {
	return func(r *Repository) { r.migrator = m }
}

// New creates a repository over store.
func New(store *kv.Safe, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		ns:     DefaultNamespace,
		ids:    ident.NewGenerator(nil),
		clock:  dossier.SystemClock,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the repository clock's current stamp.
func (r *Repository) Now() string {
	return dossier.FormatTime(r.clock())
}

// Namespace returns the key namespace in use.
func (r *Repository) Namespace() string {
	return r.ns
}

func (r *Repository) prefix() string {
	return r.ns + ":dossier:"
}

// Key returns the storage key of dossier id.
func (r *Repository) Key(id string) string {
	return r.prefix() + id
}

// ActiveKey returns the storage key of the active pointer.
func (r *Repository) ActiveKey() string {
	return r.ns + ":activeDossierId"
}

// IDFromKey extracts the dossier id from a storage key.
func (r *Repository) IDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, r.prefix())
	return id, ok && id != ""
}

// Create allocates a new dossier with default metadata overlaid by patch,
// persists it and makes it active.
func (r *Repository) Create(ctx context.Context, patch dossier.MetaPatch) *dossier.Dossier {
	meta := dossier.DefaultMeta()
	patch.Apply(&meta)
	return r.create(ctx, meta)
}

// CreateDemo is Create with the fixed demo metadata.
func (r *Repository) CreateDemo(ctx context.Context) *dossier.Dossier {
	return r.create(ctx, dossier.DemoMeta())
}

func (r *Repository) create(ctx context.Context, meta dossier.Meta) *dossier.Dossier {
	d := dossier.New(r.ids.New(), r.Now(), meta)
	r.Upsert(ctx, d)
	r.SetActiveID(ctx, d.ID)
	r.logger.Debug("repository: created", slog.String("id", d.ID))
	return d
}

// Get loads dossier id, or nil when it is missing or unreadable. A legacy
// entry stored under the bare id is used when the namespaced key is absent.
func (r *Repository) Get(ctx context.Context, id string) *dossier.Dossier {
	raw, ok := r.Raw(ctx, id)
	if !ok {
		return nil
	}
	d := dossier.Decode([]byte(raw))
	if d == nil {
		r.logger.Debug("repository: unreadable entry", slog.String("id", id))
	}
	return d
}

// Raw returns the stored text of dossier id verbatim. The legacy bare-id
// entry is only consulted for ids of the generated pattern, so that other
// storage keys are never reachable as dossiers.
func (r *Repository) Raw(ctx context.Context, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if raw, ok := r.store.Get(ctx, r.Key(id)); ok && raw != "" {
		return raw, true
	}
	if !ident.Valid(id) {
		return "", false
	}
	if raw, ok := r.store.Get(ctx, id); ok && raw != "" {
		return raw, true
	}
	return "", false
}

// Upsert writes d under its id. When no active pointer exists, d becomes
// active.
func (r *Repository) Upsert(ctx context.Context, d *dossier.Dossier) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return
	}
	text, err := dossier.Encode(d)
	if err != nil {
		r.logger.Warn("repository: encode failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	r.store.Set(ctx, r.Key(id), string(text))
	if r.ActiveID(ctx) == "" {
		r.SetActiveID(ctx, id)
	}
}

// Update re-reads dossier id, applies fn and persists the result when fn
// reports a change. It returns the stored dossier, or nil when id is absent.
func (r *Repository) Update(ctx context.Context, id string, fn func(d *dossier.Dossier) bool) *dossier.Dossier {
	d := r.Get(ctx, id)
	if d == nil {
		return nil
	}
	if fn(d) {
		r.Upsert(ctx, d)
	}
	return d
}

// List returns summaries of every readable dossier, most recently updated
// first. Ties are ordered by id.
func (r *Repository) List(ctx context.Context) []Summary {
	out := []Summary{}
	for _, key := range r.store.Keys(ctx) {
		if _, ok := r.IDFromKey(key); !ok {
			continue
		}
		raw, ok := r.store.Get(ctx, key)
		if !ok {
			continue
		}
		d := dossier.Decode([]byte(raw))
		if d == nil {
			r.logger.Debug("repository: skipping unreadable entry", slog.String("key", key))
			continue
		}
		out = append(out, summarize(d))
	}
	slices.SortStableFunc(out, func(a, b Summary) int {
		if c := compareStamps(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func summarize(d *dossier.Dossier) Summary {
	s := Summary{
		ID:                d.ID,
		ProjectName:       d.DisplayName(),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		OneLineProblem:    d.Meta.OneLineProblem,
		LastVisitedStepID: d.LastVisitedStepID,
	}
	step := d.LastVisitedStepID
	if !dossier.KnownStep(step) {
		step = dossier.FirstStepID
	}
	s.ResumeHref = links.StepHref(step, d.ID)
	return s
}

// compareStamps orders timestamps chronologically when both parse and
// lexically otherwise.
func compareStamps(a, b string) int {
	ta, okA := dossier.ParseTime(a)
	tb, okB := dossier.ParseTime(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return cmp.Compare(a, b)
}

// Delete removes dossier id, including a legacy bare-id entry for ids of
// the generated pattern. If it was
// active, the most recent remaining dossier becomes active, or the pointer
// is cleared.
func (r *Repository) Delete(ctx context.Context, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	r.store.Remove(ctx, r.Key(id))
	if ident.Valid(id) {
		r.store.Remove(ctx, id)
	}

	if r.ActiveID(ctx) != id {
		return
	}
	next := ""
	if remaining := r.List(ctx); len(remaining) > 0 {
		next = remaining[0].ID
	}
	r.SetActiveID(ctx, next)
}

// ActiveID returns the active pointer, or "" when unset. When only a legacy
// key holds a value, it is copied into the canonical key.
func (r *Repository) ActiveID(ctx context.Context) string {
	if raw, ok := r.store.Get(ctx, r.ActiveKey()); ok {
		if v := strings.TrimSpace(raw); v != "" {
			return v
		}
	}
	for _, k := range legacyActiveKeys {
		raw, ok := r.store.Get(ctx, k)
		if !ok {
			continue
		}
		if v := strings.TrimSpace(raw); v != "" {
			r.store.Set(ctx, r.ActiveKey(), v)
			r.logger.Info("repository: migrated legacy active pointer", slog.String("key", k))
			return v
		}
	}
	return ""
}

// SetActiveID stores the active pointer. An empty id clears it.
func (r *Repository) SetActiveID(ctx context.Context, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		r.store.Remove(ctx, r.ActiveKey())
		return
	}
	r.store.Set(ctx, r.ActiveKey(), id)
}

// Active resolves the active pointer to a dossier. A pointer to a missing
// dossier is replaced by the most recent stored dossier, or cleared.
func (r *Repository) Active(ctx context.Context) *dossier.Dossier {
	id := r.ActiveID(ctx)
	if id != "" {
		if d := r.Get(ctx, id); d != nil {
			return d
		}
	}
	remaining := r.List(ctx)
	if len(remaining) == 0 {
		if id != "" {
			r.SetActiveID(ctx, "")
		}
		return nil
	}
	r.SetActiveID(ctx, remaining[0].ID)
	return r.Get(ctx, remaining[0].ID)
}
