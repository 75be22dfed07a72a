// Package exporter drives the external note export routine and hands its
// image output to the asset relay.
package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/notepub/internal/apperr"
	"github.com/starford/notepub/internal/checksum"
	"github.com/starford/notepub/internal/command"
	"github.com/starford/notepub/internal/models"
	"github.com/starford/notepub/internal/parser"
	"github.com/starford/notepub/internal/relay"
	"github.com/starford/notepub/internal/storage"
)

// Adapter invokes the export routine as
//
//	<command> <args...> <content dir> <backup dir>
//
// and then runs the asset relay. Which notes get exported (tag discovery,
// Markdown conversion) is entirely the routine's business.
type Adapter struct {
	runner  command.Runner
	command string
	args    []string
	content storage.Provider
	backup  storage.Provider
	relay   *relay.Relay
	tag     string
	logger  *slog.Logger
}

// Options configures an Adapter.
type Options struct {
	Command string
	Args    []string
	// Tag, when set, is only used to report exported notes lacking it.
	Tag string
}

// New creates an exporter adapter. rel may be nil to skip asset relaying.
func New(runner command.Runner, opts Options, content, backup storage.Provider, rel *relay.Relay, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		runner:  runner,
		command: opts.Command,
		args:    opts.Args,
		content: content,
		backup:  backup,
		relay:   rel,
		tag:     opts.Tag,
		logger:  logger,
	}
}

// Sync runs one export. A missing export command is reported as
// apperr.ErrExporterNotFound before anything is touched on disk.
func (a *Adapter) Sync(ctx context.Context) error {
	path, err := a.runner.LookPath(a.command)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", apperr.ErrExporterNotFound, a.command, err)
	}

	if err := a.content.EnsureRoot(); err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	if err := a.backup.EnsureRoot(); err != nil {
		return fmt.Errorf("exporter: %w", err)
	}

	args := make([]string, 0, len(a.args)+2)
	args = append(args, a.args...)
	args = append(args, a.content.Root(), a.backup.Root())
	cmd := command.Command{Name: path, Args: args}

	a.logger.Info("exporter: running", slog.String("cmd", cmd.String()))
	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	if err := res.Err(cmd); err != nil {
		return fmt.Errorf("exporter: %w", err)
	}

	if a.relay != nil {
		if _, err := a.relay.Run(ctx); err != nil {
			return err
		}
	}

	a.summarize()
	return nil
}

// Notes lists the Markdown files currently in the content directory.
func (a *Adapter) Notes() ([]models.ExportedNote, error) {
	metas, err := a.content.List("", ".md")
	if err != nil {
		return nil, err
	}
	notes := make([]models.ExportedNote, 0, len(metas))
	for _, m := range metas {
		data, err := a.content.Read(m.Path)
		if err != nil {
			a.logger.Warn("exporter: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res := parser.Parse(data)
		notes = append(notes, models.ExportedNote{
			Path:     m.Path,
			Title:    res.Title,
			Tags:     res.Tags,
			Checksum: checksum.Sum(data),
		})
	}
	return notes, nil
}

func (a *Adapter) summarize() {
	notes, err := a.Notes()
	if err != nil {
		a.logger.Warn("exporter: summary failed", slog.String("error", err.Error()))
		return
	}
	for _, n := range notes {
		a.logger.Debug("exporter: note",
			slog.String("path", n.Path),
			slog.String("title", n.Title),
			slog.Any("tags", n.Tags))
		if a.tag != "" && !hasTag(n.Tags, a.tag) {
			a.logger.Warn("exporter: note without publish tag", slog.String("path", n.Path), slog.String("tag", a.tag))
		}
	}
	a.logger.Info("exporter: done", slog.Int("notes", len(notes)), slog.String("content_dir", a.content.Root()))
}

func hasTag(tags []string, tag string) bool {
	r := parser.Result{Tags: tags}
	return r.HasTag(tag)
}
