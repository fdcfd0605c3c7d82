// Package process wraps one spawned child process whose stdout and stderr
// are delivered as raw chunks on a single channel.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/CZERTAINLY/congregation/internal/model"
)

// Command describes what to spawn. Line is appended as the last argument of
// Shell, so with the default shell it is interpreted by `sh -c`.
type Command struct {
	Shell     []string
	Line      string
	Dir       string
	Env       []string
	WaitDelay time.Duration // bound on waiting for pipes inherited by orphaned grandchildren
}

type Chunk struct {
	Stream model.Stream
	Data   []byte
}

type ExitResult struct {
	Code     int
	Signaled bool
	Signal   string
	Err      error // *model.StreamReadError when output could not be read to the end
	Started  time.Time
	Stopped  time.Time
}

type Handle struct {
	cmd    *exec.Cmd
	chunks chan Chunk
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once

	mx         sync.Mutex
	exited     bool
	terminated bool
	result     ExitResult
}

// Spawn starts the command. Errors are always *model.SpawnError.
func Spawn(ctx context.Context, c Command) (*Handle, error) {
	shell := c.Shell
	if len(shell) == 0 {
		shell = model.DefaultShell()
	}

	args := append(append([]string(nil), shell[1:]...), c.Line)
	cmd := exec.Command(shell[0], args...)
	if c.Dir != "" {
		dir, err := workdir(c.Dir)
		if err != nil {
			return nil, &model.SpawnError{Command: c.Line, Err: err}
		}
		cmd.Dir = dir
	}
	if c.Env != nil {
		cmd.Env = c.Env
	}
	cmd.WaitDelay = c.WaitDelay
	setProcAttr(cmd)

	h := &Handle{
		cmd:    cmd,
		chunks: make(chan Chunk, 16),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	cmd.Stdout = chunkWriter{h: h, stream: model.Stdout}
	cmd.Stderr = chunkWriter{h: h, stream: model.Stderr}

	started := time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return nil, &model.SpawnError{Command: c.Line, Err: err}
	}
	h.result.Started = started
	slog.DebugContext(ctx, "process started", "pid", cmd.Process.Pid, "path", cmd.Path, "dir", cmd.Dir)

	go h.wait(ctx)
	return h, nil
}

func workdir(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %s: not a directory", dir)
	}
	return dir, nil
}

func (h *Handle) wait(ctx context.Context) {
	err := h.cmd.Wait()
	res := exitResult(h.cmd.ProcessState)

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
	case errors.Is(err, exec.ErrWaitDelay):
		slog.WarnContext(ctx, "output pipes held open after exit: closed", "pid", h.cmd.Process.Pid)
	default:
		res.Err = &model.StreamReadError{Stream: -1, Err: err}
	}

	h.mx.Lock()
	res.Started = h.result.Started
	res.Stopped = time.Now().UTC()
	h.result = res
	h.exited = true
	h.mx.Unlock()

	close(h.chunks)
	close(h.done)
}

// Pid returns the process id of the child.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Chunks returns the output of both streams in arrival order. The channel is
// closed once both streams reached end of file and the process was reaped.
func (h *Handle) Chunks() <-chan Chunk {
	return h.chunks
}

// Done is closed once the process exited and its output was fully delivered.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exited. Chunks must be drained (or Release
// called) concurrently, otherwise Wait never returns.
func (h *Handle) Wait() ExitResult {
	<-h.done
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.result
}

// Terminate asks the process and its children to stop. It is a no-op once
// the process was reaped.
func (h *Handle) Terminate() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.exited {
		return nil
	}
	h.terminated = true
	return terminate(h.cmd.Process)
}

// Kill stops the process and its children without giving them a chance to
// clean up.
func (h *Handle) Kill() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.exited {
		return nil
	}
	h.terminated = true
	return kill(h.cmd.Process)
}

// Terminated reports whether Terminate or Kill reached a live process.
func (h *Handle) Terminated() bool {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.terminated
}

// Release makes further output be discarded instead of queued. It is used
// when nobody reads Chunks anymore.
func (h *Handle) Release() {
	h.once.Do(func() { close(h.stop) })
}

type chunkWriter struct {
	h      *Handle
	stream model.Stream
}

func (w chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case w.h.chunks <- Chunk{Stream: w.stream, Data: bytes.Clone(p)}:
	case <-w.h.stop:
	}
	return len(p), nil
}
