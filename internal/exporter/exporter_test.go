package exporter

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/notepub/internal/apperr"
	"github.com/starford/notepub/internal/command"
	"github.com/starford/notepub/internal/relay"
	"github.com/starford/notepub/internal/storage"
	"github.com/starford/notepub/internal/testutil"
)

type env struct {
	mem     afero.Fs
	runner  *testutil.FakeRunner
	content *storage.FS
	backup  *storage.FS
	public  *storage.FS
	adapter *Adapter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := afero.NewMemMapFs()
	mk := func(root string) *storage.FS {
		s, err := storage.NewFS(mem, root)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	e := &env{
		mem:     mem,
		runner:  testutil.NewFakeRunner(),
		content: mk("/site/content/notes"),
		backup:  mk("/backup"),
		public:  mk("/site/static/images"),
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rel := relay.New(e.content, e.public, "images", logger)
	e.adapter = New(e.runner, Options{Command: "export-notes", Args: []string{"--tag", "blog"}, Tag: "blog"}, e.content, e.backup, rel, logger)
	return e
}

// exportTo simulates the export routine: it writes into the last two args.
func (e *env) exportTo(files map[string]string) testutil.Handler {
	return func(_ context.Context, c command.Command) (command.Result, error) {
		contentDir := c.Args[len(c.Args)-2]
		backupDir := c.Args[len(c.Args)-1]
		for name, body := range files {
			for _, dir := range []string{contentDir, backupDir} {
				p := filepath.Join(dir, name)
				_ = e.mem.MkdirAll(filepath.Dir(p), 0o755)
				if err := afero.WriteFile(e.mem, p, []byte(body), 0o644); err != nil {
					return command.Result{ExitCode: 1}, nil
				}
			}
		}
		return command.Result{}, nil
	}
}

func TestSync_PassesDirsAndRelaysImages(t *testing.T) {
	e := newEnv(t)
	e.runner.Handle("export-notes", e.exportTo(map[string]string{
		"hello.md":     "---\ntitle: Hello\ntags: [blog]\n---\nbody\n",
		"images/a.png": "png-bytes",
	}))

	if err := e.adapter.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	calls := e.runner.Calls("export-notes")
	if len(calls) != 1 {
		t.Fatalf("export invoked %d times, want 1", len(calls))
	}
	args := calls[0].Args
	if len(args) != 4 || args[0] != "--tag" || args[2] != "/site/content/notes" || args[3] != "/backup" {
		t.Errorf("args = %v", args)
	}

	if got, err := e.public.Read("a.png"); err != nil || string(got) != "png-bytes" {
		t.Errorf("image not relayed: %q, %v", got, err)
	}
	if _, err := e.backup.Read("hello.md"); err != nil {
		t.Errorf("backup not written: %v", err)
	}

	notes, err := e.adapter.Notes()
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "Hello" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestSync_CreatesDirectories(t *testing.T) {
	e := newEnv(t)
	e.runner.Handle("export-notes", testutil.Exit(0, ""))

	if err := e.adapter.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for _, dir := range []string{"/site/content/notes", "/backup"} {
		if ok, _ := afero.DirExists(e.mem, dir); !ok {
			t.Errorf("%s not created", dir)
		}
	}
	if ok, _ := afero.Exists(e.mem, "/site/static/images"); ok {
		t.Error("public dir created without images to relay")
	}
}

func TestSync_MissingExporter(t *testing.T) {
	e := newEnv(t)

	err := e.adapter.Sync(context.Background())
	if !errors.Is(err, apperr.ErrExporterNotFound) {
		t.Fatalf("err = %v, want ErrExporterNotFound", err)
	}
	if ok, _ := afero.Exists(e.mem, "/site/content/notes"); ok {
		t.Error("nothing should be created when the exporter is missing")
	}
}

func TestSync_ExportFailure(t *testing.T) {
	e := newEnv(t)
	e.runner.Handle("export-notes", testutil.Exit(2, "database locked"))

	err := e.adapter.Sync(context.Background())
	var exitErr *command.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *command.ExitError", err)
	}
	if exitErr.ExitCode != 2 || exitErr.Output != "database locked" {
		t.Errorf("exit error = %+v", exitErr)
	}
}
