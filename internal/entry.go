// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/notepub/internal/builder"
	"github.com/starford/notepub/internal/command"
	"github.com/starford/notepub/internal/exporter"
	"github.com/starford/notepub/internal/pipeline"
	"github.com/starford/notepub/internal/relay"
	"github.com/starford/notepub/internal/repository"
	"github.com/starford/notepub/internal/schedule"
	"github.com/starford/notepub/internal/storage"
	"github.com/starford/notepub/internal/watch"
)

func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}

	logger := app.newLogger()
	if app.runner == nil {
		app.runner = command.NewExecRunner(logger)
	}
	return app, logger, nil
}

// newLogger builds the structured logger. Output goes to stderr so stdout
// stays free for command output and the MCP stdio transport.
func (a *application) newLogger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	var h slog.Handler
	if a.config.App.LogFormat == LogFormatText {
		h = slog.NewTextHandler(a.logOutput, hopts)
	} else {
		h = slog.NewJSONHandler(a.logOutput, hopts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func (a *application) newRelay(logger *slog.Logger) (*relay.Relay, storage.Provider, error) {
	paths := a.config.Paths
	content, err := storage.NewOsFS(paths.ContentDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init content storage: %w", err)
	}
	public, err := storage.NewOsFS(paths.PublicDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init public storage: %w", err)
	}
	return relay.New(content, public, paths.ImagesSubdir, logger), content, nil
}

// newOrchestrator wires exporter, relay, builder, and repository into a pipeline.
func (a *application) newOrchestrator(logger *slog.Logger, skipSync, noPush bool) (*pipeline.Orchestrator, error) {
	cfg := a.config

	rel, content, err := a.newRelay(logger)
	if err != nil {
		return nil, err
	}
	backup, err := storage.NewOsFS(cfg.Paths.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("init backup storage: %w", err)
	}
	exp := exporter.New(a.runner, exporter.Options{
		Command: cfg.Exporter.Command,
		Args:    cfg.Exporter.Args,
		Tag:     cfg.Exporter.Tag,
	}, content, backup, rel, logger)

	outputDir, err := cfg.OutputPath()
	if err != nil {
		return nil, err
	}
	bld := builder.New(a.runner, cfg.Builder.Command, cfg.Builder.BuildArgs(outputDir), cfg.Builder.Dir, logger)

	repo, err := repository.Open(repository.Options{
		Path:        cfg.Repository.Path,
		Remote:      cfg.Repository.Remote,
		Branch:      cfg.Repository.Branch,
		AuthorName:  cfg.Repository.Author.Name,
		AuthorEmail: cfg.Repository.Author.Email,
		Username:    cfg.Repository.Auth.Username,
		Token:       cfg.Repository.Auth.Token,
	}, logger)
	if err != nil {
		return nil, err
	}

	popts := []pipeline.Option{pipeline.WithLogger(logger)}
	if skipSync {
		popts = append(popts, pipeline.WithSkipSync())
	}
	if noPush {
		popts = append(popts, pipeline.WithoutPush())
	}
	return pipeline.New(exp, bld, repo, outputDir, popts...), nil
}

func (a *application) publish(ctx context.Context, logger *slog.Logger, skipSync, noPush bool) (*pipeline.RunState, error) {
	o, err := a.newOrchestrator(logger, skipSync, noPush)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

// RunPublish performs one pipeline run. The returned error is non-nil when
// any stage failed; a run with nothing to commit is a success.
func RunPublish(ctx context.Context, opts ...Option) (*pipeline.RunState, error) {
	app, logger, err := newApplication(opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("content_dir", app.config.Paths.ContentDir),
		slog.String("output_dir", app.config.Paths.OutputDir),
		slog.String("repository", app.config.Repository.Path),
		slog.Bool("skip_sync", app.skipSync),
		slog.Bool("no_push", app.noPush))

	return app.publish(ctx, logger, app.skipSync, app.noPush)
}

// RunRelay copies exported images into the public static directory without
// running the rest of the pipeline.
func RunRelay(ctx context.Context, opts ...Option) (relay.Stats, error) {
	app, logger, err := newApplication(opts)
	if err != nil {
		return relay.Stats{}, err
	}
	rel, _, err := app.newRelay(logger)
	if err != nil {
		return relay.Stats{}, err
	}
	return rel.Run(ctx)
}

// RunWatch re-runs build, diff, commit, and push whenever the content
// directory changes, until ctx is cancelled.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Watching content",
		slog.String("content_dir", cfg.Paths.ContentDir),
		slog.Duration("debounce", cfg.Schedule.Debounce))

	return watch.Watch(ctx, cfg.Paths.ContentDir, cfg.Schedule.Debounce, logger, func(ctx context.Context) error {
		_, err := app.publish(ctx, logger, true, app.noPush)
		return err
	})
}

// RunSchedule performs a full publish run immediately and then once per
// configured interval, until ctx is cancelled.
func RunSchedule(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}

	s, err := schedule.New(logger)
	if err != nil {
		return err
	}
	every := app.config.Schedule.Every
	err = s.Every(ctx, every, "publish", func(ctx context.Context) error {
		_, err := app.publish(ctx, logger, app.skipSync, app.noPush)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("Schedule started", slog.Duration("every", every))
	return s.Run(ctx)
}
