package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/congregation/internal/log"
	"github.com/CZERTAINLY/congregation/internal/model"
)

// DefaultGracePeriod is how long cancelled tasks get to exit before they are
// killed.
const DefaultGracePeriod = 5 * time.Second

// Presenter renders events. It is only ever called from the goroutine
// running Supervisor.RunAll.
type Presenter interface {
	Present(ev model.Event) error
}

type Options struct {
	Runner      RunnerOptions
	GracePeriod time.Duration
	MaxParallel int // 0 starts every task at once
}

type Supervisor struct {
	opts      Options
	presenter Presenter
	hurry     chan struct{}
	hurryOnce sync.Once
}

func NewSupervisor(opts Options, presenter Presenter) *Supervisor {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Supervisor{
		opts:      opts,
		presenter: presenter,
		hurry:     make(chan struct{}),
	}
}

// Hurry ends the grace period of an ongoing (or future) cancellation
// immediately. Calling it more than once has no further effect.
//
// Tasks still running at that point are killed and reported with
// model.ErrTerminationTimeout. Tasks which already exited keep their exit
// code, but output they had not delivered yet is lost.
func (s *Supervisor) Hurry() {
	s.hurryOnce.Do(func() { close(s.hurry) })
}

// RunAll starts one runner per spec and forwards their events to the
// presenter according to mode until every task has exited.
//
// Cancelling ctx terminates all running tasks and returns a Cancelled result
// once they exited, or once the grace period elapsed, in which case the
// stragglers are killed and reported as such (see Hurry).
//
// Only an invalid spec list or mode is returned as an error; failures of
// individual tasks are part of the result.
func (s *Supervisor) RunAll(ctx context.Context, specs []model.TaskSpec, mode model.Mode) (model.AggregateResult, error) {
	if err := model.ValidateSpecs(specs); err != nil {
		return model.AggregateResult{}, err
	}
	sink, err := newSink(mode, s.presenter)
	if err != nil {
		return model.AggregateResult{}, err
	}
	slog.DebugContext(ctx, "starting tasks", "count", len(specs), "mode", mode, "max_parallel", s.opts.MaxParallel)

	runners := make([]*Runner, len(specs))
	for i, spec := range specs {
		runners[i] = NewRunner(spec, s.opts.Runner)
	}

	events := make(chan model.Event, 4*len(specs))
	abandon := make(chan struct{})
	defer close(abandon)

	go func() {
		var g errgroup.Group
		if s.opts.MaxParallel > 0 {
			g.SetLimit(s.opts.MaxParallel)
		}
		for _, r := range runners {
			rctx := log.ContextAttrs(ctx,
				slog.Int("task_index", r.spec.Index),
				slog.String("task_name", r.spec.Label()),
			)
			g.Go(func() error {
				r.Run(rctx, events, abandon)
				return nil
			})
		}
		_ = g.Wait() // runners do not return errors
		close(events)
	}()

	var (
		outcomes  = make([]model.Outcome, len(specs))
		exited    = make([]bool, len(specs))
		remaining = len(specs)
		cancelled bool
		reclaimed bool
		ctxDone   = ctx.Done()
		grace     <-chan time.Time
		hurry     <-chan struct{}
	)
	record := func(ev model.Event) {
		i := ev.Task.Index
		if exited[i] {
			return
		}
		exited[i] = true
		remaining--
		outcomes[i] = model.Outcome{Task: specs[i], Exit: ev.Exit}
	}

	deliver := func(ev model.Event) {
		if ev.Kind == model.EventExited && exited[ev.Task.Index] {
			return
		}
		sink.handle(ctx, ev)
		if ev.Kind == model.EventExited {
			record(ev)
		}
	}
	// drainReady delivers what runners already produced before the
	// stragglers are reclaimed.
	drainReady := func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				deliver(ev)
			default:
				return
			}
		}
	}

loop:
	for remaining > 0 {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			deliver(ev)
		case <-ctxDone:
			ctxDone = nil
			cancelled = true
			slog.InfoContext(ctx, "cancellation requested: terminating tasks", "grace_period", s.opts.GracePeriod.String())
			for i, r := range runners {
				if !exited[i] {
					r.Kill(ctx)
				}
			}
			timer := time.NewTimer(s.opts.GracePeriod)
			defer timer.Stop()
			grace = timer.C
			hurry = s.hurry
		case <-hurry:
			slog.InfoContext(ctx, "grace period cut short")
			drainReady()
			s.reclaim(ctx, runners, exited, sink, record)
			reclaimed = true
			break loop
		case <-grace:
			drainReady()
			s.reclaim(ctx, runners, exited, sink, record)
			reclaimed = true
			break loop
		}
	}

	if !reclaimed {
		// every runner emitted its last event, wait for them to return
		for range events {
		}
	}

	res := model.Aggregate(outcomes, cancelled)
	slog.DebugContext(ctx, "tasks finished", "status", res.Status.String(), "code", res.Code)
	return res, nil
}

// reclaim kills tasks which ignored termination and reports them as killed.
// A task which already exited but whose Exited event was not delivered yet
// keeps its real exit; output lines it had not delivered are dropped.
func (s *Supervisor) reclaim(ctx context.Context, runners []*Runner, exited []bool, sink sink, record func(model.Event)) {
	for i, r := range runners {
		if exited[i] {
			continue
		}
		if exit, ok := r.Exited(); ok {
			ev := model.ExitedEvent(r.spec, exit)
			sink.handle(ctx, ev)
			record(ev)
			continue
		}
		r.ForceKill(ctx)
		exit := model.Exit{Code: model.ExitCancelled, Killed: true}
		if r.State() != model.StateNotStarted {
			slog.WarnContext(ctx, "task did not exit within the grace period: killed",
				"task_index", i,
				"task_name", r.spec.Label(),
				"error", model.ErrTerminationTimeout,
			)
			exit = model.Exit{
				Code:    model.ExitKilled,
				Killed:  true,
				Started: true,
				Err:     model.ErrTerminationTimeout,
			}
		}
		ev := model.ExitedEvent(r.spec, exit)
		sink.handle(ctx, ev)
		record(ev)
	}
}

// sink applies the presentation mode between runners and the presenter.
type sink interface {
	handle(ctx context.Context, ev model.Event)
}

func newSink(mode model.Mode, p Presenter) (sink, error) {
	switch mode {
	case model.ModeInterleaved:
		return interleaved{p: p}, nil
	case model.ModeGrouped:
		return &grouped{p: p, blocks: make(map[int]*block)}, nil
	default:
		return nil, fmt.Errorf("unsupported mode %q: expected %s or %s", mode, model.ModeGrouped, model.ModeInterleaved)
	}
}

func present(ctx context.Context, p Presenter, ev model.Event) {
	if err := p.Present(ev); err != nil {
		slog.ErrorContext(ctx, "presenting output failed", "task_index", ev.Task.Index, "error", err)
	}
}

type interleaved struct {
	p Presenter
}

func (s interleaved) handle(ctx context.Context, ev model.Event) {
	present(ctx, s.p, ev)
}

// grouped holds back every event of a task until it exited and then presents
// them as one block: Started, stdout lines, stderr lines, Exited.
type grouped struct {
	p      Presenter
	blocks map[int]*block
}

type block struct {
	started *model.Event
	lines   [2][]model.Event
}

func (s *grouped) handle(ctx context.Context, ev model.Event) {
	b, ok := s.blocks[ev.Task.Index]
	if !ok {
		b = &block{}
		s.blocks[ev.Task.Index] = b
	}
	switch ev.Kind {
	case model.EventStarted:
		b.started = &ev
	case model.EventLine:
		b.lines[ev.Stream] = append(b.lines[ev.Stream], ev)
	case model.EventExited:
		if b.started != nil {
			present(ctx, s.p, *b.started)
		}
		for _, stream := range b.lines {
			for _, line := range stream {
				present(ctx, s.p, line)
			}
		}
		present(ctx, s.p, ev)
		delete(s.blocks, ev.Task.Index)
	}
}
