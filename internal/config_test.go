package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/notepub/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Capture.Port != 8765 {
		t.Errorf("port = %d, want 8765", cfg.Capture.Port)
	}
	if cfg.Paths.ImagesSubdir != "images" {
		t.Errorf("images subdir = %q", cfg.Paths.ImagesSubdir)
	}
}

func TestApplicationConfig_EmptyFormatDefaultsJSON(t *testing.T) {
	cfg := ApplicationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("format = %q, want %q", cfg.LogFormat, LogFormatJSON)
	}
}

func TestApplicationConfig_InvalidFormat(t *testing.T) {
	cfg := ApplicationConfig{LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid format should fail validation")
	}
}

func TestCaptureConfig_PortRange(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := CaptureConfig{Port: port, DebugDir: "debug"}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
}

func TestCaptureConfig_Address(t *testing.T) {
	cfg := CaptureConfig{Host: "0.0.0.0", Port: 9000}
	if got := cfg.Address(); got != "0.0.0.0:9000" {
		t.Errorf("address = %q", got)
	}
}

func TestBuilderConfig_BuildArgs(t *testing.T) {
	cfg := BuilderConfig{Command: "hugo"}
	got := cfg.BuildArgs("docs")
	if strings.Join(got, " ") != "--destination docs" {
		t.Errorf("default args = %v", got)
	}

	cfg.Args = []string{"--minify"}
	if got := cfg.BuildArgs("docs"); len(got) != 1 || got[0] != "--minify" {
		t.Errorf("explicit args = %v", got)
	}
}

func TestFullConfig_SectionErrorsArePrefixed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repository.Author.Email = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("missing author email should fail")
	}
	if !strings.HasPrefix(err.Error(), "repository:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScheduleConfig_MinimumInterval(t *testing.T) {
	cfg := ScheduleConfig{Every: 10 * time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("interval below one minute should fail")
	}
}

func TestLoadConfig_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("NOTEPUB_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
repository:
  branch: main
  auth:
    token: ${NOTEPUB_TEST_TOKEN}
capture:
  port: 9100
schedule:
  every: 30m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Repository.Auth.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Repository.Auth.Token)
	}
	if cfg.Repository.Branch != "main" || cfg.Repository.Remote != "origin" {
		t.Errorf("repository = %+v", cfg.Repository)
	}
	if cfg.Capture.Port != 9100 || cfg.Capture.DebugDir != "debug" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Schedule.Every != 30*time.Minute {
		t.Errorf("every = %v", cfg.Schedule.Every)
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if found {
		t.Error("missing file reported as found")
	}
	if cfg.Builder.Command != "hugo" {
		t.Errorf("builder = %q", cfg.Builder.Command)
	}
}

func TestOutputPath_RelativeToBuilderDir(t *testing.T) {
	root := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Builder.Dir = filepath.Join(root, "site")
	cfg.Paths.OutputDir = "docs"

	got, err := cfg.OutputPath()
	if err != nil {
		t.Fatalf("OutputPath: %v", err)
	}
	if want := filepath.Join(root, "site", "docs"); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	abs := filepath.Join(root, "public")
	cfg.Paths.OutputDir = abs
	if got, _ := cfg.OutputPath(); got != abs {
		t.Errorf("absolute output = %q, want %q", got, abs)
	}
}
