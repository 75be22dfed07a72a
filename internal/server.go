package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notepub/internal/capture"
	"github.com/starford/notepub/internal/index"
	"github.com/starford/notepub/internal/mcpserver"
	"github.com/starford/notepub/internal/pipeline"
	"github.com/starford/notepub/internal/storage"
)

// openCaptures opens the debug directory and, when configured, the capture index.
// The returned close function is never nil.
func (a *application) openCaptures(logger *slog.Logger) (storage.Provider, *index.DB, func(), error) {
	cfg := a.config.Capture
	store, err := storage.NewOsFS(cfg.DebugDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init debug storage: %w", err)
	}
	if err := store.EnsureRoot(); err != nil {
		return nil, nil, nil, fmt.Errorf("capture: debug dir unavailable: %w", err)
	}
	if cfg.IndexPath == "" {
		return store, nil, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.IndexPath), 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.IndexPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, func() { db.Close() }, nil
}

// RunCapture serves the callback capture listener until ctx is cancelled or
// SIGINT/SIGTERM is received. Startup fails when the debug directory cannot
// be created or the port cannot be bound.
func RunCapture(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config.Capture

	store, db, closeDB, err := app.openCaptures(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	var ropts []capture.RecorderOption
	if db != nil {
		ropts = append(ropts, capture.WithIndex(db))
	}
	rec, err := capture.NewRecorder(store, logger, ropts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           capture.NewHandler(rec, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Capture listener starting...",
		slog.String("http_address", cfg.Address()),
		slog.String("debug_dir", rec.Dir()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Capture listener error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Capture listener stopped")
	return nil
}

// ListCaptures writes indexed capture records to w as JSON lines, newest first.
func ListCaptures(ctx context.Context, w io.Writer, method string, limit int, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.config.Capture.IndexPath == "" {
		return fmt.Errorf("capture index is disabled (capture.index_path is empty)")
	}

	_, db, closeDB, err := app.openCaptures(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	rows, err := db.ListCaptures(method, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// RunMCP serves the MCP tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.config.Capture.IndexPath == "" {
		return fmt.Errorf("capture index is disabled (capture.index_path is empty)")
	}

	store, db, closeDB, err := app.openCaptures(logger)
	if err != nil {
		return err
	}
	defer closeDB()

	publish := func(ctx context.Context, skipSync, noPush bool) (*pipeline.RunState, error) {
		return app.publish(ctx, logger, skipSync, noPush)
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(publish, store, db).ServeStdio()
}
