package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/dossier/internal/autosave"
	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/kv"
	"github.com/starford/dossier/internal/metrics"
	"github.com/starford/dossier/internal/repository"
	"github.com/starford/dossier/internal/reviewgate"
	"github.com/starford/dossier/internal/stepcodec"
	"github.com/starford/dossier/internal/summary"
)

// Core holds the wired domain services shared by every entry point.
type Core struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Backend kv.Backend
	Store   *kv.Safe
	Repo    *repository.Repository
	Service *dossierservice.Service
	Gate    *reviewgate.Gate
	Version string
}

// NewCore opens the configured backend and builds the dossier services on
// top of it. Close releases them.
func NewCore(opts ...Option) (*Core, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	backend := app.backend
	if backend == nil {
		if cfg.Storage.Backend == kv.BackendFS {
			if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		b, err := kv.Open(cfg.Storage.KVOptions())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		backend = b
	}

	m := metrics.New()
	store := kv.NewSafe(backend, logger, kv.WithFailureHook(m.KVFailure))

	clock := time.Now
	codec := stepcodec.New(
		stepcodec.WithLogger(logger),
		stepcodec.WithFallbackHook(m.MigrationFallback),
	)
	repo := repository.New(store,
		repository.WithNamespace(cfg.Storage.Namespace),
		repository.WithLogger(logger),
		repository.WithMigrator(codec),
	)
	extractor := summary.NewExtractor(codec,
		summary.WithRules(cfg.Completion),
		summary.WithThresholds(cfg.Evidence),
	)
	drafts := autosave.New(cfg.Autosave.Debounce,
		autosave.WithFireHook(func(string) { m.AutosaveFlush() }),
	)
	svcOpts := []dossierservice.Option{
		dossierservice.WithDrafts(drafts),
		dossierservice.WithReviewDebounce(cfg.Autosave.ReviewDebounce),
		dossierservice.WithClock(clock),
		dossierservice.WithMetrics(m),
		dossierservice.WithLogger(logger),
	}
	if app.events != nil {
		svcOpts = append(svcOpts, dossierservice.WithEvents(app.events))
	}
	svc := dossierservice.New(repo, codec, extractor, svcOpts...)

	version := app.version
	if version == "" {
		version = "dev"
	}

	logger.Info("Storage opened",
		slog.String("backend", backend.Name()),
		slog.String("namespace", repo.Namespace()),
		slog.String("path", cfg.Storage.Path))

	return &Core{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Backend: backend,
		Store:   store,
		Repo:    repo,
		Service: svc,
		Gate:    reviewgate.New(reviewgate.NewVerifier(cfg.Reviewer.Key), store, reviewgate.WithNamespace(cfg.Storage.Namespace)),
		Version: version,
	}, nil
}

// WatchStorage reports out-of-process edits of the fs backend directory as
// dossier events. Other backends return immediately.
func (c *Core) WatchStorage(ctx context.Context, publish dossierservice.EventFunc) error {
	fs, ok := c.Backend.(*kv.FS)
	if !ok {
		return nil
	}
	return kv.Watch(ctx, fs.Root(), c.Logger, func(kind, key string) {
		if key == c.Repo.ActiveKey() {
			publish(dossierservice.EventActiveChanged, c.Repo.ActiveID(ctx))
			return
		}
		id, ok := c.Repo.IDFromKey(key)
		if !ok {
			return
		}
		if kind == kv.ChangeRemoved {
			publish(dossierservice.EventDeleted, id)
			return
		}
		publish(dossierservice.EventChanged, id)
	})
}

// Close flushes pending autosave writes and closes the backend.
func (c *Core) Close() error {
	if n := c.Service.Close(); n > 0 {
		c.Logger.Info("Flushed pending drafts", slog.Int("count", n))
	}
	if err := c.Backend.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
