// Package testutil provides shared test helpers: fake command runners,
// temporary git repositories, and capture index databases.
package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/starford/notepub/internal/command"
	"github.com/starford/notepub/internal/index"
)

// Handler simulates one external tool.
type Handler func(ctx context.Context, c command.Command) (command.Result, error)

// FakeRunner is a command.Runner that dispatches to registered handlers
// and records every invocation. Unregistered tools are "not on PATH".
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []command.Command
}

var _ command.Runner = (*FakeRunner)(nil)

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]Handler)}
}

// Handle registers h for the tool name.
func (f *FakeRunner) Handle(name string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// LookPath resolves registered tools to their own name.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[name]; !ok {
		return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
	}
	return name, nil
}

// Run records c and invokes its handler.
func (f *FakeRunner) Run(ctx context.Context, c command.Command) (command.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h, ok := f.handlers[c.Name]
	f.mu.Unlock()
	if !ok {
		return command.Result{ExitCode: -1}, fmt.Errorf("%s: %w", c.Name, exec.ErrNotFound)
	}
	return h(ctx, c)
}

// Calls returns the recorded invocations of name.
func (f *FakeRunner) Calls(name string) []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []command.Command
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Exit returns a handler that exits with code and output without side effects.
func Exit(code int, output string) Handler {
	return func(context.Context, command.Command) (command.Result, error) {
		return command.Result{ExitCode: code, Output: []byte(output)}, nil
	}
}

// TestDB creates a temporary capture index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "captures.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo initialises a working repository with one commit and an "origin"
// remote pointing at a fresh bare repository. It returns both paths.
func TestRepo(t *testing.T) (workDir, bareDir string) {
	t.Helper()
	tmp := t.TempDir()
	bareDir = filepath.Join(tmp, "remote.git")
	if _, err := git.PlainInit(bareDir, true); err != nil {
		t.Fatalf("init bare: %v", err)
	}

	workDir = filepath.Join(tmp, "site")
	repo, err := git.PlainInit(workDir, false)
	if err != nil {
		t.Fatalf("init work: %v", err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bareDir}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "README.md"), []byte("site\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return workDir, bareDir
}

// CommitMessages returns the commit messages reachable from HEAD of the
// repository at dir, newest first.
func CommitMessages(t *testing.T, dir string) []string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	var out []string
	_ = iter.ForEach(func(c *object.Commit) error {
		out = append(out, c.Message)
		return nil
	})
	return out
}
