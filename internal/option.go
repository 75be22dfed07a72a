package internal

import (
	"io"

	"github.com/starford/notepub/internal/command"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	runner    command.Runner
	logOutput io.Writer
	skipSync  bool
	noPush    bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSkipSync skips the note export; the run starts at the build stage.
func WithSkipSync(skip bool) Option {
	return func(a *application) {
		a.skipSync = skip
	}
}

// WithoutPush stops a publish run after the commit stage.
func WithoutPush(noPush bool) Option {
	return func(a *application) {
		a.noPush = noPush
	}
}

// WithRunner replaces the subprocess runner used for the exporter and builder.
func WithRunner(r command.Runner) Option {
	return func(a *application) {
		a.runner = r
	}
}

// WithLogOutput redirects log output (stderr by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
