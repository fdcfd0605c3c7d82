package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSpecs       = errors.New("invalid task list")
	ErrTerminationTimeout = errors.New("task did not exit within the grace period")
)

// SpawnError is returned when a task's command could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StreamReadError is reported when the output of a child process could not
// be read to the end.
type StreamReadError struct {
	Stream Stream
	Err    error
}

func (e *StreamReadError) Error() string {
	if e.Stream < 0 {
		return fmt.Sprintf("reading output: %v", e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() error { return e.Err }
