// Package pipeline sequences one publish run: sync notes, build the site,
// detect output changes, commit, and push. Every stage runs to completion
// before the next begins; the first failure ends the run. Nothing is retried
// or rolled back.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Syncer exports notes into the content directory.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Builder renders the site into the output directory.
type Builder interface {
	Build(ctx context.Context) error
}

// Repository is the version-control side of the pipeline.
type Repository interface {
	HasChanges(ctx context.Context, path string) (bool, error)
	Commit(ctx context.Context, path, message string) error
	Push(ctx context.Context) error
}

const commitTimeLayout = "2006-01-02 15:04:05"

// CommitMessage returns the message recorded for a publish commit made at t.
func CommitMessage(t time.Time) string {
	return "Auto update notes " + t.Format(commitTimeLayout)
}

// Orchestrator runs the publish state machine.
type Orchestrator struct {
	syncer    Syncer
	builder   Builder
	repo      Repository
	outputDir string
	skipSync  bool
	noPush    bool
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSkipSync starts the run at BUILD, for notes exported by hand.
func WithSkipSync() Option {
	return func(o *Orchestrator) { o.skipSync = true }
}

// WithoutPush ends a changed run after COMMIT.
func WithoutPush() Option {
	return func(o *Orchestrator) { o.noPush = true }
}

// WithClock sets the time source used for commit messages.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger that receives stage events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator. outputDir is the builder's output location,
// the only path that is diffed and committed.
func New(s Syncer, b Builder, r Repository, outputDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		syncer:    s,
		builder:   b,
		repo:      r,
		outputDir: outputDir,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives the machine from START to a terminal state. The returned error
// is a *StageError when the run ended in FAILED, and nil for both DONE and
// NO_CHANGE.
func (o *Orchestrator) Run(ctx context.Context) (*RunState, error) {
	rs := &RunState{}
	state := StateStart
	for !state.Terminal() {
		next, ev := o.step(ctx, state)
		o.emit(ev)
		if next == StateFailed {
			rs.Err = &StageError{Stage: state, Err: ev.Err}
		} else if state != StateStart {
			rs.Completed = append(rs.Completed, state)
		}
		state = next
	}
	rs.Final = state
	return rs, rs.Err
}

func (o *Orchestrator) step(ctx context.Context, s State) (State, Event) {
	switch s {
	case StateStart:
		return o.start()
	case StateSync:
		return o.sync(ctx)
	case StateBuild:
		return o.build(ctx)
	case StateDiff:
		return o.diff(ctx)
	case StateCommit:
		return o.commit(ctx)
	case StatePush:
		return o.push(ctx)
	default:
		return StateFailed, failed(s, "unexpected state", fmt.Errorf("no transition from %s", s))
	}
}

func (o *Orchestrator) start() (State, Event) {
	if o.skipSync {
		return StateBuild, Event{Stage: StateStart, Level: slog.LevelInfo, Message: "starting run, sync skipped"}
	}
	return StateSync, Event{Stage: StateStart, Level: slog.LevelInfo, Message: "starting run"}
}

func (o *Orchestrator) sync(ctx context.Context) (State, Event) {
	if err := o.syncer.Sync(ctx); err != nil {
		return StateFailed, failed(StateSync, "sync FAILED", err)
	}
	return StateBuild, ok(StateSync, "sync ok")
}

func (o *Orchestrator) build(ctx context.Context) (State, Event) {
	if err := o.builder.Build(ctx); err != nil {
		return StateFailed, failed(StateBuild, "build FAILED", err)
	}
	return StateDiff, ok(StateBuild, "build ok")
}

func (o *Orchestrator) diff(ctx context.Context) (State, Event) {
	changed, err := o.repo.HasChanges(ctx, o.outputDir)
	if err != nil {
		return StateFailed, failed(StateDiff, "diff FAILED", err)
	}
	if !changed {
		return StateNoChange, ok(StateDiff, "no changes to commit")
	}
	return StateCommit, ok(StateDiff, "changes detected")
}

func (o *Orchestrator) commit(ctx context.Context) (State, Event) {
	msg := CommitMessage(o.now())
	if err := o.repo.Commit(ctx, o.outputDir, msg); err != nil {
		return StateFailed, failed(StateCommit, "git commit failed", err)
	}
	if o.noPush {
		return StateDone, ok(StateCommit, "committed, push disabled")
	}
	return StatePush, ok(StateCommit, "committed")
}

func (o *Orchestrator) push(ctx context.Context) (State, Event) {
	if err := o.repo.Push(ctx); err != nil {
		return StateFailed, failed(StatePush, "git push failed", err)
	}
	return StateDone, ok(StatePush, "pushed")
}

func ok(s State, msg string) Event {
	return Event{Stage: s, Level: slog.LevelInfo, Message: msg}
}

func failed(s State, msg string, err error) Event {
	return Event{Stage: s, Level: slog.LevelError, Message: msg, Err: err}
}

// emit writes ev with the shared "publish:" prefix.
func (o *Orchestrator) emit(ev Event) {
	attrs := []slog.Attr{slog.String("stage", ev.Stage.String())}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
	}
	o.logger.LogAttrs(context.Background(), ev.Level, "publish: "+ev.Message, attrs...)
}
