//go:build unix

package service_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/congregation/internal/model"
	"github.com/CZERTAINLY/congregation/internal/service"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
}

func collect(ch <-chan model.Event) []model.Event {
	var out []model.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func runOne(t *testing.T, ctx context.Context, r *service.Runner) (model.Exit, []model.Event) {
	t.Helper()
	events := make(chan model.Event)
	abandon := make(chan struct{})
	t.Cleanup(func() { close(abandon) })

	var exit model.Exit
	go func() {
		exit = r.Run(ctx, events, abandon)
		close(events)
	}()
	got := collect(events)
	return exit, got
}

func TestRunner(t *testing.T) {
	t.Parallel()
	requireSh(t)

	spec := model.TaskSpec{Index: 0, Name: "one", Command: "echo a; echo b 1>&2; echo c; printf tail"}
	r := service.NewRunner(spec, service.RunnerOptions{})
	require.Equal(t, model.StateNotStarted, r.State())

	exit, events := runOne(t, t.Context(), r)
	require.True(t, exit.Success())
	require.Equal(t, model.StateExited, r.State())

	require.GreaterOrEqual(t, len(events), 2)
	require.Equal(t, model.EventStarted, events[0].Kind)
	last := events[len(events)-1]
	require.Equal(t, model.EventExited, last.Kind)
	require.Zero(t, last.Exit.Code)
	require.True(t, last.Exit.Started)

	var stdout, stderr []string
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, model.EventLine, ev.Kind)
		require.Equal(t, "one", ev.Task.Name)
		if ev.Stream == model.Stdout {
			stdout = append(stdout, ev.Text)
		} else {
			stderr = append(stderr, ev.Text)
		}
	}
	require.Equal(t, []string{"a", "c", "tail"}, stdout)
	require.Equal(t, []string{"b"}, stderr)
}

func TestRunner_ExitCode(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := service.NewRunner(model.TaskSpec{Command: "exit 7"}, service.RunnerOptions{})
	exit, events := runOne(t, t.Context(), r)
	require.Equal(t, 7, exit.Code)
	require.False(t, exit.Success())
	require.False(t, exit.Killed)
	require.Len(t, events, 2)
	require.Equal(t, 7, events[1].Exit.Code)
}

func TestRunner_SpawnError(t *testing.T) {
	t.Parallel()

	spec := model.TaskSpec{Command: "true", Dir: filepath.Join(t.TempDir(), "missing")}
	r := service.NewRunner(spec, service.RunnerOptions{})
	exit, events := runOne(t, t.Context(), r)

	require.Equal(t, model.ExitSpawnFailed, exit.Code)
	require.False(t, exit.Started)
	var spawnErr *model.SpawnError
	require.ErrorAs(t, exit.Err, &spawnErr)
	require.Equal(t, model.StateExited, r.State())

	require.Len(t, events, 1)
	require.Equal(t, model.EventExited, events[0].Kind)
}

func TestRunner_Kill(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := service.NewRunner(model.TaskSpec{Command: "echo ready; sleep 30"}, service.RunnerOptions{})
	events := make(chan model.Event)
	abandon := make(chan struct{})
	defer close(abandon)

	done := make(chan model.Exit, 1)
	go func() { done <- r.Run(t.Context(), events, abandon) }()

	require.Equal(t, model.EventStarted, (<-events).Kind)
	ev := <-events
	require.Equal(t, "ready", ev.Text)

	r.Kill(t.Context())
	r.Kill(t.Context())

	ev = <-events
	require.Equal(t, model.EventExited, ev.Kind)
	require.True(t, ev.Exit.Killed)
	require.True(t, ev.Exit.Signaled)

	exit := <-done
	require.True(t, exit.Killed)
	require.Equal(t, model.StateKilled, r.State())

	// no-op on a finished task
	r.Kill(t.Context())
	r.ForceKill(t.Context())
}

func TestRunner_ContextCancel(t *testing.T) {
	t.Parallel()
	requireSh(t)

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		r := service.NewRunner(model.TaskSpec{Command: "echo never"}, service.RunnerOptions{})
		exit, events := runOne(t, ctx, r)
		require.True(t, exit.Killed)
		require.False(t, exit.Started)
		require.Len(t, events, 1)
		require.Equal(t, model.EventExited, events[0].Kind)
	})

	t.Run("while running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		r := service.NewRunner(model.TaskSpec{Command: "sleep 30"}, service.RunnerOptions{})
		events := make(chan model.Event)
		abandon := make(chan struct{})
		defer close(abandon)
		go r.Run(ctx, events, abandon)

		require.Equal(t, model.EventStarted, (<-events).Kind)
		cancel()
		ev := <-events
		require.Equal(t, model.EventExited, ev.Kind)
		require.True(t, ev.Exit.Killed)
	})
}

func TestRunner_Abandon(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := service.NewRunner(model.TaskSpec{Command: "while :; do echo golang; done"}, service.RunnerOptions{})
	events := make(chan model.Event)
	abandon := make(chan struct{})

	done := make(chan model.Exit, 1)
	go func() { done <- r.Run(t.Context(), events, abandon) }()
	<-events
	<-events
	close(abandon)

	exit := <-done
	require.True(t, exit.Killed)
	require.Equal(t, model.StateKilled, r.State())
}

func TestRunner_ExitedBeforeDelivery(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := service.NewRunner(model.TaskSpec{Command: "exit 3"}, service.RunnerOptions{})
	_, ok := r.Exited()
	require.False(t, ok)

	events := make(chan model.Event)
	abandon := make(chan struct{})
	defer close(abandon)
	go r.Run(t.Context(), events, abandon)

	require.Equal(t, model.EventStarted, (<-events).Kind)

	// the Exited event is not read yet, the exit is already known
	require.Eventually(t, func() bool {
		_, ok := r.Exited()
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	exit, _ := r.Exited()
	require.Equal(t, 3, exit.Code)
	require.False(t, exit.Killed)

	ev := <-events
	require.Equal(t, model.EventExited, ev.Kind)
	require.Equal(t, exit, ev.Exit)
}
