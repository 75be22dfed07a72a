package pipeline

import (
	"fmt"
	"log/slog"
)

// State is a node of the publish state machine:
//
//	START → SYNC → BUILD → DIFF → NO_CHANGE
//	                           └→ COMMIT → PUSH → DONE
//
// Any stage may move to FAILED.
type State int

const (
	StateStart State = iota
	StateSync
	StateBuild
	StateDiff
	StateCommit
	StatePush
	StateDone
	StateNoChange
	StateFailed
)

var stateNames = map[State]string{
	StateStart:    "start",
	StateSync:     "sync",
	StateBuild:    "build",
	StateDiff:     "diff",
	StateCommit:   "commit",
	StatePush:     "push",
	StateDone:     "done",
	StateNoChange: "no_change",
	StateFailed:   "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateNoChange || s == StateFailed
}

// Event is the log record produced by one transition.
type Event struct {
	Stage   State
	Level   slog.Level
	Message string
	Err     error
}

// StageError reports the stage that stopped a run.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RunState is the transient record of one pipeline invocation.
type RunState struct {
	Final     State
	Completed []State
	Err       error
}

// Succeeded reports whether stage completed during the run.
func (r *RunState) Succeeded(stage State) bool {
	for _, s := range r.Completed {
		if s == stage {
			return true
		}
	}
	return false
}

// Changed reports whether the run produced and pushed (or committed) new output.
func (r *RunState) Changed() bool {
	return r.Succeeded(StateCommit)
}
