package model

import (
	"fmt"
	"time"
)

type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventLine
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventLine:
		return "line"
	case EventExited:
		return "exited"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is produced by a task runner and consumed by the supervisor. Only
// the fields matching Kind are meaningful: Stream and Text for EventLine,
// Exit for EventExited.
type Event struct {
	Task   TaskSpec
	Kind   EventKind
	Time   time.Time
	Stream Stream
	Text   string
	Exit   Exit
}

// Exit describes how a task ended.
type Exit struct {
	Code     int
	Signaled bool
	Killed   bool  // terminated on request (cancellation or forced reclamation)
	Started  bool  // false when the process never ran
	Err      error // SpawnError, StreamReadError or ErrTerminationTimeout
}

func (e Exit) Success() bool {
	return e.Started && e.Code == 0 && !e.Killed && e.Err == nil
}

// State returns the terminal runner state matching the exit.
func (e Exit) State() State {
	if e.Killed {
		return StateKilled
	}
	return StateExited
}

func StartedEvent(spec TaskSpec) Event {
	return Event{Task: spec, Kind: EventStarted, Time: time.Now()}
}

func LineEvent(spec TaskSpec, stream Stream, text string) Event {
	return Event{Task: spec, Kind: EventLine, Time: time.Now(), Stream: stream, Text: text}
}

func ExitedEvent(spec TaskSpec, exit Exit) Event {
	return Event{Task: spec, Kind: EventExited, Time: time.Now(), Exit: exit}
}

type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateExited
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateExited || s == StateKilled
}
