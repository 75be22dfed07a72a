package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, run RunFunc) (cancel func()) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := Watch(ctx, root, 50*time.Millisecond, logger, run); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	// Let the watcher register its directories.
	time.Sleep(100 * time.Millisecond)
	return func() {
		stop()
		wg.Wait()
	}
}

func TestWatch_DebouncesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)
	root := t.TempDir()
	var runs atomic.Int32
	cancel := startWatch(t, root, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "note"+string(rune('a'+i))+".md")
		if err := os.WriteFile(name, []byte("# note"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return runs.Load() >= 1 }, "run never triggered")
	time.Sleep(200 * time.Millisecond)
	cancel()

	if n := runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1 for a single burst", n)
	}
}

func TestWatch_NewSubdirectory(t *testing.T) {
	defer goleak.VerifyNone(t)
	root := t.TempDir()
	var runs atomic.Int32
	cancel := startWatch(t, root, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	defer cancel()

	sub := filepath.Join(root, "images")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return runs.Load() >= 1 }, "mkdir did not trigger")

	before := runs.Load()
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return runs.Load() > before }, "write in new dir did not trigger")
}

func TestWatch_IgnoresHiddenFiles(t *testing.T) {
	defer goleak.VerifyNone(t)
	root := t.TempDir()
	var runs atomic.Int32
	cancel := startWatch(t, root, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	if err := os.WriteFile(filepath.Join(root, ".notepub-tmp-123"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	cancel()

	if n := runs.Load(); n != 0 {
		t.Errorf("runs = %d, want 0", n)
	}
}
