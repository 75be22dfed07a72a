// Package relay mirrors exported image assets into the site's public-asset directory.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/notepub/internal/checksum"
	"github.com/starford/notepub/internal/storage"
)

// Stats summarises one relay pass.
type Stats struct {
	Skipped   bool // no images folder under the content directory
	Copied    int
	Unchanged int
}

// Relay copies <content>/<subdir> into the public-asset root.
// The copy is additive: files are created or overwritten, never deleted.
type Relay struct {
	content storage.Provider
	public  storage.Provider
	subdir  string
	logger  *slog.Logger
}

// New creates a relay from the images subfolder of content into public.
func New(content, public storage.Provider, subdir string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{content: content, public: public, subdir: subdir, logger: logger}
}

// Run mirrors the images folder. A missing folder is not an error.
func (r *Relay) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	ok, err := r.content.IsDir(r.subdir)
	if err != nil {
		return stats, fmt.Errorf("relay: %w", err)
	}
	if !ok {
		stats.Skipped = true
		r.logger.Info("relay: no images folder, skipping", slog.String("dir", filepath.Join(r.content.Root(), r.subdir)))
		return stats, nil
	}

	if err := r.public.EnsureRoot(); err != nil {
		return stats, fmt.Errorf("relay: %w", err)
	}

	files, err := r.content.List(r.subdir, "")
	if err != nil {
		return stats, fmt.Errorf("relay: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		target, err := filepath.Rel(r.subdir, f.Path)
		if err != nil {
			return stats, fmt.Errorf("relay: %w", err)
		}

		data, err := r.content.Read(f.Path)
		if err != nil {
			return stats, fmt.Errorf("relay: %w", err)
		}
		if existing, readErr := r.public.Read(target); readErr == nil && checksum.Sum(existing) == checksum.Sum(data) {
			stats.Unchanged++
			continue
		}
		if err := r.public.Write(target, data); err != nil {
			return stats, fmt.Errorf("relay: %w", err)
		}
		stats.Copied++
		r.logger.Debug("relay: copied", slog.String("path", target))
	}

	r.logger.Info("relay: done",
		slog.Int("copied", stats.Copied),
		slog.Int("unchanged", stats.Unchanged),
		slog.String("dest", r.public.Root()))
	return stats, nil
}
