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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/lifecycle"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
)

// core is the wired document stack shared by every command.
type core struct {
	cfg      *Config
	logger   *slog.Logger
	store    storage.Provider
	db       *index.DB
	docs     *docservice.Service
	restorer *restore.Engine
	machine  *lifecycle.Machine
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

// bootstrap opens storage and the index, runs the initial sync and builds
// the document service. onChange may be nil.
func (a *application) bootstrap(onChange func(docservice.Change)) (*core, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_root", cfg.Content.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("debounce", cfg.Editor.Debounce))

	lay := cfg.Content.Layout
	for _, dir := range append(lay.ContentDirs(), lay.RecycleDir) {
		if err := os.MkdirAll(filepath.Join(cfg.Content.Root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create content dir: %w", err)
		}
	}

	store, err := storage.NewFS(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, lay, logger.With(slog.String("component", "index"))); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	docOpts := []docservice.Option{docservice.WithMaxSuffix(cfg.Editor.MaxSuffix)}
	if onChange != nil {
		docOpts = append(docOpts, docservice.WithOnChange(onChange))
	}
	docs := docservice.New(store, db, lay, logger.With(slog.String("component", "docservice")), docOpts...)
	restorer := restore.New(docs, cfg.Editor.MaxSuffix, logger.With(slog.String("component", "restore")))
	machine := lifecycle.New(docs, restorer, logger.With(slog.String("component", "lifecycle")))

	return &core{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		db:       db,
		docs:     docs,
		restorer: restorer,
		machine:  machine,
	}, nil
}

// Run starts the HTTP server, the file watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.bootstrap(broker.PublishChange)
	if err != nil {
		return err
	}
	defer c.db.Close()
	cfg, logger := c.cfg, c.logger

	sessions := session.NewManager(c.docs, c.machine, session.Options{
		Debounce:   cfg.Editor.Debounce,
		DeriveSlug: cfg.Editor.DeriveSlug,
		OnEvent:    broker.PublishSessionEvent,
		Logger:     logger,
	})

	handler := api.NewHandler(c.docs, c.restorer, sessions)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}
	// SSE streams only end when the broker closes.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, c.db, c.store, cfg.Content.Layout, cfg.Content.Root,
			logger.With(slog.String("component", "watcher")), broker.PublishFileEvent)
		if err != nil {
			logger.Error("file watcher stopped", slog.String("error", err.Error()))
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

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		shutdown(httpServer, sessions, logger, shutdownTimeout)
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// shutdownTimeout bounds each shutdown phase.
const shutdownTimeout = 10 * time.Second

// shutdown stops the HTTP server, then closes every edit session so queued
// edits reach disk before the index is closed. Each phase has its own
// timeout.
func shutdown(srv *http.Server, sessions *session.Manager, logger *slog.Logger, timeout time.Duration) {
	httpCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), timeout)
	defer cancelClose()
	if err := sessions.CloseAll(closeCtx); err != nil {
		logger.Error("closing edit sessions", slog.String("error", err.Error()))
	}
}

// errShutdown cancels the group so the watcher stops once shutdown begins.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Callers must point the log
// output away from stdout with WithLogOutput.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOutput == os.Stdout {
		return fmt.Errorf("mcp: log output must not be stdout")
	}

	c, err := app.bootstrap(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.docs, c.machine, c.restorer).ServeStdio()
}

// RunSync reconciles the index with the content tree once and exits.
func RunSync(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.bootstrap(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	_, total, err := c.docs.ListDocuments(ctx, models.DocumentFilter{})
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	c.logger.Info("Sync complete", slog.Int("documents", total))
	return nil
}
