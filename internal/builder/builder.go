// Package builder runs the static-site generator.
package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/notepub/internal/apperr"
	"github.com/starford/notepub/internal/command"
)

// Builder invokes the site generator in the site root. The generator is
// expected to write its artifacts to a fixed output directory.
type Builder struct {
	runner command.Runner
	name   string
	args   []string
	dir    string
	logger *slog.Logger
}

// New creates a builder running `name args...` inside dir.
func New(runner command.Runner, name string, args []string, dir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{runner: runner, name: name, args: args, dir: dir, logger: logger}
}

// Build runs the generator once and waits for it to exit.
func (b *Builder) Build(ctx context.Context) error {
	path, err := b.runner.LookPath(b.name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", apperr.ErrBuilderNotFound, b.name, err)
	}

	cmd := command.Command{Name: path, Args: b.args, Dir: b.dir}
	b.logger.Info("builder: running", slog.String("cmd", cmd.String()), slog.String("dir", b.dir))

	res, err := b.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := res.Err(cmd); err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	return nil
}
