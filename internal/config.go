package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Paths      PathsConfig       `yaml:"paths"`
	Exporter   ExporterConfig    `yaml:"exporter"`
	Builder    BuilderConfig     `yaml:"builder"`
	Repository RepositoryConfig  `yaml:"repository"`
	Capture    CaptureConfig     `yaml:"capture"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Exporter.Validate(); err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	if err := c.Builder.Validate(); err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := c.Repository.Validate(); err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return c.Schedule.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// PathsConfig is the filesystem layout shared by the exporter, relay, builder, and repository.
// OutputDir is relative to builder.dir unless absolute; see Config.OutputPath.
type PathsConfig struct {
	ContentDir   string `yaml:"content_dir"`
	ImagesSubdir string `yaml:"images_subdir"`
	PublicDir    string `yaml:"public_dir"`
	BackupDir    string `yaml:"backup_dir"`
	OutputDir    string `yaml:"output_dir"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContentDir, validation.Required),
		validation.Field(&c.ImagesSubdir, validation.Required),
		validation.Field(&c.PublicDir, validation.Required),
		validation.Field(&c.BackupDir, validation.Required),
		validation.Field(&c.OutputDir, validation.Required),
	)
}

// ExporterConfig names the external export routine.
// It is invoked as: <command> <args...> <content_dir> <backup_dir>.
type ExporterConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Tag     string   `yaml:"tag"`
}

// Validate validates the exporter configuration.
func (c *ExporterConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.Required),
	)
}

// BuilderConfig names the static-site generator.
type BuilderConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
}

// Validate validates the builder configuration.
func (c *BuilderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.Required),
	)
}

// OutputPath returns the builder output directory as an absolute path.
// A relative paths.output_dir is taken relative to builder.dir, where the
// generator runs; the same path is handed to the generator and diffed.
func (c *Config) OutputPath() (string, error) {
	out := c.Paths.OutputDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(c.Builder.Dir, out)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	return abs, nil
}

// BuildArgs returns the configured arguments, defaulting to Hugo's
// --destination pointing at the output directory.
func (c *BuilderConfig) BuildArgs(outputDir string) []string {
	if len(c.Args) > 0 {
		return c.Args
	}
	return []string{"--destination", outputDir}
}

// RepositoryConfig holds git settings.
type RepositoryConfig struct {
	Path   string        `yaml:"path"`
	Remote string        `yaml:"remote"`
	Branch string        `yaml:"branch"`
	Author AuthorConfig  `yaml:"author"`
	Auth   GitAuthConfig `yaml:"auth"`
}

// AuthorConfig is the identity recorded on publish commits.
type AuthorConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// GitAuthConfig holds optional HTTP credentials for push.
// An empty Token leaves authentication to the transport defaults.
type GitAuthConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// Validate validates the repository configuration.
func (c *RepositoryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Remote, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Author,
		validation.Field(&c.Author.Name, validation.Required),
		validation.Field(&c.Author.Email, validation.Required),
	)
}

// CaptureConfig holds callback capture listener configuration.
type CaptureConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DebugDir string `yaml:"debug_dir"`
	// IndexPath is the SQLite capture index; empty disables indexing.
	IndexPath string `yaml:"index_path"`
}

// Address returns the listener address.
func (c *CaptureConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DebugDir, validation.Required),
	)
}

// ScheduleConfig controls the watch and schedule commands.
type ScheduleConfig struct {
	Every    time.Duration `yaml:"every"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Every, validation.Min(time.Minute)),
		validation.Field(&c.Debounce, validation.Min(100*time.Millisecond)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Paths: PathsConfig{
			ContentDir:   "content/notes",
			ImagesSubdir: "images",
			PublicDir:    "static/images",
			BackupDir:    "backup",
			OutputDir:    "docs",
		},
		Exporter: ExporterConfig{
			Command: "./scripts/export-notes",
		},
		Builder: BuilderConfig{
			Command: "hugo",
			Dir:     ".",
		},
		Repository: RepositoryConfig{
			Path:   ".",
			Remote: "origin",
			Author: AuthorConfig{
				Name:  "notepub",
				Email: "notepub@localhost",
			},
		},
		Capture: CaptureConfig{
			Host:      "127.0.0.1",
			Port:      8765,
			DebugDir:  "debug",
			IndexPath: "debug/captures.db",
		},
		Schedule: ScheduleConfig{
			Every:    time.Hour,
			Debounce: 2 * time.Second,
		},
	}
}
