// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/starford/weft/internal/api"
	"github.com/starford/weft/internal/docservice"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/mcpserver"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/sse"
	"github.com/starford/weft/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB // nil when persistence is off
	linker *index.Linker
	svc    *docservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup initializes logging, storage, the snapshot database and the linker.
func (app *application) setup(linkerOpts ...index.LinkerOption) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("corpus_path", cfg.Corpus.Path),
		slog.String("scheme", cfg.Corpus.Scheme),
		slog.Bool("persist", cfg.Index.Persist),
		slog.String("sqlite_path", cfg.Index.SQLitePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure corpus directory exists.
	if err := os.MkdirAll(cfg.Corpus.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}

	if cfg.Index.Persist {
		if rt.db, err = index.Open(cfg.Index.SQLitePath); err != nil {
			return nil, fmt.Errorf("init snapshot db: %w", err)
		}
	}

	linkerOpts = append([]index.LinkerOption{
		index.WithScheme(cfg.Corpus.Scheme),
		index.WithLogger(logger),
	}, linkerOpts...)
	rt.linker = index.NewLinker(store, linkerOpts...)
	rt.svc = docservice.NewService(store, rt.linker, logger)
	return rt, nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("snapshot db close failed", slog.String("error", err.Error()))
		}
	}
}

// restore installs the persisted snapshot, if any, as a provisional index.
func (rt *runtime) restore(ctx context.Context) {
	if rt.db == nil {
		return
	}
	snap, err := rt.db.Load(ctx)
	if err != nil {
		rt.logger.Warn("snapshot load failed", slog.String("error", err.Error()))
		return
	}
	if len(snap.Documents) == 0 {
		return
	}
	if err := rt.linker.Restore(snap); err != nil {
		rt.logger.Warn("snapshot rejected", slog.String("error", err.Error()))
	}
}

// persist writes the live index to the snapshot database.
func (rt *runtime) persist(ctx context.Context) {
	if rt.db == nil {
		return
	}
	snap := rt.linker.Snapshot()
	if err := rt.db.Save(ctx, snap); err != nil {
		rt.logger.Error("snapshot save failed", slog.String("error", err.Error()))
		return
	}
	rt.logger.Debug("snapshot saved",
		slog.Int("documents", len(snap.Documents)),
		slog.Int("edges", len(snap.Edges)))
}

// rebuild runs a full rebuild and persists the result. Failures are logged
// and leave the previous index in place.
func (rt *runtime) rebuild(ctx context.Context, reason string) {
	if _, err := rt.linker.Rebuild(ctx, models.Scope{}); err != nil {
		if ctx.Err() == nil {
			rt.logger.Error("rebuild failed", slog.String("reason", reason), slog.String("error", err.Error()))
		}
		return
	}
	rt.persist(ctx)
}

// Run starts the HTTP server, the corpus watcher and the rebuild scheduler.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SSE broker receives every linker event.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := app.setup(index.WithEventCallback(broker.OnIndexEvent))
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	rt.restore(ctx)

	var limiter *rate.Limiter
	if cfg.Index.RebuildMinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Index.RebuildMinInterval), 1)
	}
	apiRouter := api.NewRouter(rt.svc, rt.linker, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, limiter)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Ready once any index state exists, provisional or not.
		if st := rt.linker.Status(); st.LastRebuild.IsZero() && !st.Provisional {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"indexing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Initial rebuild when the snapshot is missing or too old.
	g.Go(func() error {
		if rt.linker.Stale(cfg.Index.MaxSnapshotAge) {
			logger.Info("Index stale, rebuilding in background")
			rt.rebuild(gCtx, "startup")
		}
		return nil
	})

	// Periodic rebuild closes any gap left by missed notifications.
	g.Go(func() error {
		if cfg.Index.RebuildInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(cfg.Index.RebuildInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				rt.rebuild(gCtx, "periodic")
			}
		}
	})

	// Corpus watcher turns out-of-band edits into index updates.
	g.Go(func() error {
		if err := index.Watch(gCtx, rt.linker, rt.store, cfg.Corpus.Path, logger); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or on the first failure.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		rt.persist(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Rebuild performs one full rebuild, persists it, and returns the stats.
func Rebuild(ctx context.Context, opts ...Option) (index.BuildStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return index.BuildStats{}, err
	}
	rt, err := app.setup()
	if err != nil {
		return index.BuildStats{}, err
	}
	defer rt.close()

	st, err := rt.linker.Rebuild(ctx, models.Scope{})
	if err != nil {
		return index.BuildStats{}, err
	}
	rt.persist(ctx)
	return st, nil
}

// ServeMCP exposes the index over MCP on stdin/stdout. Logs go to the
// configured output, which must not be stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt.restore(ctx)
	if rt.linker.Stale(app.config.Index.MaxSnapshotAge) {
		rt.rebuild(ctx, "startup")
	}

	go func() {
		if err := index.Watch(ctx, rt.linker, rt.store, app.config.Corpus.Path, rt.logger); err != nil {
			rt.logger.Error("watcher failed", slog.String("error", err.Error()))
		}
	}()

	err = mcpserver.New(rt.svc, rt.linker).ServeStdio()
	rt.persist(context.Background())
	return err
}
