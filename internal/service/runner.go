package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CZERTAINLY/congregation/internal/lines"
	"github.com/CZERTAINLY/congregation/internal/model"
	"github.com/CZERTAINLY/congregation/internal/process"
)

// RunnerOptions are shared by all runners of one run.
type RunnerOptions struct {
	Shell     []string
	Env       []string
	MaxLine   int           // bytes; 0 means unbounded
	WaitDelay time.Duration // see process.Command
}

// Runner owns the process of one task and translates its output into
// events. A Runner runs once.
type Runner struct {
	spec model.TaskSpec
	opts RunnerOptions

	mx            sync.Mutex
	state         model.State
	exit          model.Exit
	handle        *process.Handle
	killRequested bool
}

func NewRunner(spec model.TaskSpec, opts RunnerOptions) *Runner {
	return &Runner{
		spec:  spec,
		opts:  opts,
		state: model.StateNotStarted,
	}
}

func (r *Runner) Spec() model.TaskSpec {
	return r.spec
}

func (r *Runner) State() model.State {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.state
}

// Run spawns the process and emits Started, Line and finally exactly one
// Exited event to out. Sends give up once abandon is closed. A cancelled ctx
// terminates the process; the Exited event still follows once it is gone.
func (r *Runner) Run(ctx context.Context, out chan<- model.Event, abandon <-chan struct{}) model.Exit {
	emit := func(ev model.Event) bool {
		select {
		case out <- ev:
			return true
		case <-abandon:
			return false
		}
	}

	if ctx.Err() != nil || r.cancelledBeforeStart() {
		exit := model.Exit{Code: model.ExitCancelled, Killed: true}
		r.finish(exit)
		emit(model.ExitedEvent(r.spec, exit))
		return exit
	}

	h, err := process.Spawn(ctx, process.Command{
		Shell:     r.opts.Shell,
		Line:      r.spec.Command,
		Dir:       r.spec.Dir,
		Env:       r.opts.Env,
		WaitDelay: r.opts.WaitDelay,
	})
	if err != nil {
		slog.ErrorContext(ctx, "task failed to start", "error", err)
		exit := model.Exit{Code: model.ExitSpawnFailed, Err: err}
		r.finish(exit)
		emit(model.ExitedEvent(r.spec, exit))
		return exit
	}
	r.started(ctx, h)

	if !emit(model.StartedEvent(r.spec)) {
		return r.abandoned(h)
	}

	splitters := [2]*lines.Splitter{
		model.Stdout: lines.New(r.opts.MaxLine),
		model.Stderr: lines.New(r.opts.MaxLine),
	}
	chunks := h.Chunks()
	ctxDone := ctx.Done()
	for chunks != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			for _, line := range splitters[c.Stream].Feed(c.Data) {
				if !emit(model.LineEvent(r.spec, c.Stream, line)) {
					return r.abandoned(h)
				}
			}
		case <-ctxDone:
			ctxDone = nil
			r.Kill(ctx)
		}
	}

	for _, stream := range []model.Stream{model.Stdout, model.Stderr} {
		if line, ok := splitters[stream].Flush(); ok {
			if !emit(model.LineEvent(r.spec, stream, line)) {
				return r.abandoned(h)
			}
		}
	}

	res := h.Wait()
	exit := model.Exit{
		Code:     res.Code,
		Signaled: res.Signaled,
		Started:  true,
		Killed:   h.Terminated() && (res.Signaled || res.Code != 0),
	}
	if res.Err != nil {
		slog.ErrorContext(ctx, "reading task output failed", "error", res.Err)
		exit.Code = model.ExitStreamFailed
		exit.Err = res.Err
	}
	slog.DebugContext(ctx, "task exited", "code", exit.Code, "signal", res.Signal, "duration", res.Stopped.Sub(res.Started))
	r.finish(exit)
	emit(model.ExitedEvent(r.spec, exit))
	return exit
}

func (r *Runner) cancelledBeforeStart() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.killRequested
}

func (r *Runner) started(ctx context.Context, h *process.Handle) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.handle = h
	r.state = model.StateRunning
	if r.killRequested {
		// Kill arrived while the process was being spawned.
		if err := h.Terminate(); err != nil {
			slog.WarnContext(ctx, "terminating task failed", "error", err)
		}
	}
}

func (r *Runner) finish(exit model.Exit) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.state = exit.State()
	r.exit = exit
}

// Exited returns the exit of a finished task. It is set before the Exited
// event is sent, so it is available even when nobody reads the event.
func (r *Runner) Exited() (model.Exit, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.exit, r.state.Terminal()
}

// abandoned stops a process nobody listens to anymore.
func (r *Runner) abandoned(h *process.Handle) model.Exit {
	h.Release()
	_ = h.Kill()
	res := h.Wait()
	exit := model.Exit{Code: res.Code, Signaled: res.Signaled, Started: true, Killed: true}
	r.finish(exit)
	return exit
}

// Kill asks the running process to terminate. It returns immediately; the
// Exited event follows once the process is gone. Calling Kill again, or on a
// finished task, does nothing.
func (r *Runner) Kill(ctx context.Context) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.state.Terminal() || r.killRequested {
		return
	}
	r.killRequested = true
	if r.handle == nil {
		return
	}
	slog.InfoContext(ctx, "terminating task", "pid", r.handle.Pid())
	if err := r.handle.Terminate(); err != nil {
		slog.WarnContext(ctx, "terminating task failed", "error", err)
	}
}

// ForceKill kills the process without waiting for it to clean up.
func (r *Runner) ForceKill(ctx context.Context) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.state.Terminal() {
		return
	}
	r.killRequested = true
	if r.handle == nil {
		return
	}
	if err := r.handle.Kill(); err != nil {
		slog.WarnContext(ctx, "killing task failed", "error", err)
	}
}
