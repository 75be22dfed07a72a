package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStage struct {
	calls int
	err   error
}

func (f *fakeStage) Sync(context.Context) error  { f.calls++; return f.err }
func (f *fakeStage) Build(context.Context) error { f.calls++; return f.err }

type fakeRepo struct {
	changed    bool
	diffErr    error
	commitErr  error
	pushErr    error
	diffs      int
	commits    []string
	pushes     int
	diffedPath string
}

func (r *fakeRepo) HasChanges(_ context.Context, path string) (bool, error) {
	r.diffs++
	r.diffedPath = path
	return r.changed, r.diffErr
}

func (r *fakeRepo) Commit(_ context.Context, path, message string) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.commits = append(r.commits, message)
	r.changed = false
	return nil
}

func (r *fakeRepo) Push(context.Context) error {
	r.pushes++
	return r.pushErr
}

type harness struct {
	sync  *fakeStage
	build *fakeStage
	repo  *fakeRepo
	logs  *bytes.Buffer
	orch  *Orchestrator
}

func newHarness(opts ...Option) *harness {
	h := &harness{sync: &fakeStage{}, build: &fakeStage{}, repo: &fakeRepo{}, logs: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(h.logs, nil))
	clock := func() time.Time { return time.Date(2026, 10, 17, 9, 5, 7, 0, time.Local) }
	opts = append([]Option{WithLogger(logger), WithClock(clock)}, opts...)
	h.orch = New(h.sync, h.build, h.repo, "docs", opts...)
	return h
}

func TestRun_ChangedContentCommitsAndPushesOnce(t *testing.T) {
	h := newHarness()
	h.repo.changed = true

	rs, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rs.Final != StateDone {
		t.Errorf("final = %s, want done", rs.Final)
	}
	if len(h.repo.commits) != 1 || h.repo.pushes != 1 {
		t.Fatalf("commits = %d, pushes = %d", len(h.repo.commits), h.repo.pushes)
	}
	if h.repo.commits[0] != "Auto update notes 2026-10-17 09:05:07" {
		t.Errorf("message = %q", h.repo.commits[0])
	}
	if h.repo.diffedPath != "docs" {
		t.Errorf("diffed %q, want docs", h.repo.diffedPath)
	}
	for _, s := range []State{StateSync, StateBuild, StateDiff, StateCommit, StatePush} {
		if !rs.Succeeded(s) {
			t.Errorf("stage %s not recorded", s)
		}
	}
}

func TestRun_NoChangesIsNoOp(t *testing.T) {
	h := newHarness()

	rs, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rs.Final != StateNoChange {
		t.Errorf("final = %s, want no_change", rs.Final)
	}
	if len(h.repo.commits) != 0 || h.repo.pushes != 0 {
		t.Errorf("no-op run committed %d, pushed %d", len(h.repo.commits), h.repo.pushes)
	}
	if !strings.Contains(h.logs.String(), "publish: no changes to commit") {
		t.Errorf("missing no-op log:\n%s", h.logs.String())
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	h := newHarness()
	h.repo.changed = true

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	rs, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rs.Final != StateNoChange || len(h.repo.commits) != 1 || h.repo.pushes != 1 {
		t.Errorf("second run: final = %s, commits = %d, pushes = %d", rs.Final, len(h.repo.commits), h.repo.pushes)
	}
}

func TestRun_SyncFailureStopsEverything(t *testing.T) {
	h := newHarness()
	h.sync.err = errors.New("exporter exited 1")
	h.repo.changed = true

	rs, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StateSync {
		t.Fatalf("err = %v, want sync StageError", err)
	}
	if rs.Final != StateFailed {
		t.Errorf("final = %s", rs.Final)
	}
	if h.build.calls != 0 || h.repo.diffs != 0 || len(h.repo.commits) != 0 || h.repo.pushes != 0 {
		t.Errorf("stages after sync ran: build=%d diff=%d commit=%d push=%d",
			h.build.calls, h.repo.diffs, len(h.repo.commits), h.repo.pushes)
	}
	if !strings.Contains(h.logs.String(), "sync FAILED") {
		t.Errorf("missing failure log:\n%s", h.logs.String())
	}
}

func TestRun_BuildFailureSkipsCommitAndPush(t *testing.T) {
	h := newHarness()
	h.build.err = errors.New("hugo exited 255")
	h.repo.changed = true

	_, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StateBuild {
		t.Fatalf("err = %v, want build StageError", err)
	}
	if h.sync.calls != 1 {
		t.Errorf("sync calls = %d", h.sync.calls)
	}
	if len(h.repo.commits) != 0 || h.repo.pushes != 0 {
		t.Error("commit or push attempted after build failure")
	}
	if !strings.Contains(h.logs.String(), "build FAILED") {
		t.Errorf("missing failure log:\n%s", h.logs.String())
	}
}

func TestRun_DiffFailure(t *testing.T) {
	h := newHarness()
	h.repo.diffErr = errors.New("corrupt index")

	_, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StateDiff {
		t.Fatalf("err = %v, want diff StageError", err)
	}
	if h.repo.pushes != 0 {
		t.Error("push attempted")
	}
}

func TestRun_CommitFailureSkipsPush(t *testing.T) {
	h := newHarness()
	h.repo.changed = true
	h.repo.commitErr = errors.New("index.lock exists")

	_, err := h.orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if h.repo.pushes != 0 {
		t.Error("push attempted after failed commit")
	}
	if !strings.Contains(h.logs.String(), "git commit failed") {
		t.Errorf("missing failure log:\n%s", h.logs.String())
	}
}

func TestRun_PushFailure(t *testing.T) {
	h := newHarness()
	h.repo.changed = true
	h.repo.pushErr = errors.New("rejected")

	rs, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StatePush {
		t.Fatalf("err = %v, want push StageError", err)
	}
	if !rs.Succeeded(StateCommit) {
		t.Error("commit should be recorded as done; no rollback")
	}
	if h.repo.pushes != 1 {
		t.Errorf("pushes = %d, want exactly 1 (no retry)", h.repo.pushes)
	}
	if !strings.Contains(h.logs.String(), "git push failed") {
		t.Errorf("missing failure log:\n%s", h.logs.String())
	}
}

func TestRun_SkipSync(t *testing.T) {
	h := newHarness(WithSkipSync())
	h.repo.changed = true

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.sync.calls != 0 || h.build.calls != 1 {
		t.Errorf("sync = %d, build = %d", h.sync.calls, h.build.calls)
	}
}

func TestRun_WithoutPush(t *testing.T) {
	h := newHarness(WithoutPush())
	h.repo.changed = true

	rs, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rs.Final != StateDone || len(h.repo.commits) != 1 || h.repo.pushes != 0 {
		t.Errorf("final = %s, commits = %d, pushes = %d", rs.Final, len(h.repo.commits), h.repo.pushes)
	}
}

func TestRun_StageLogsSharePrefix(t *testing.T) {
	h := newHarness()
	h.repo.changed = true
	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"publish: sync ok", "publish: build ok", "publish: committed", "publish: pushed"} {
		if !strings.Contains(h.logs.String(), want) {
			t.Errorf("missing %q in:\n%s", want, h.logs.String())
		}
	}
}

func TestCommitMessage(t *testing.T) {
	msg := CommitMessage(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if !regexp.MustCompile(`^Auto update notes \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`).MatchString(msg) {
		t.Errorf("message %q has wrong shape", msg)
	}
	if msg != "Auto update notes 2026-01-02 03:04:05" {
		t.Errorf("message = %q", msg)
	}
}

func TestStateString(t *testing.T) {
	if StateNoChange.String() != "no_change" || State(99).String() != "state(99)" {
		t.Error("unexpected state names")
	}
	if !StateFailed.Terminal() || StateCommit.Terminal() {
		t.Error("unexpected terminal states")
	}
}
