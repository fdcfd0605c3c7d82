package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/congregation/internal/args"
	"github.com/CZERTAINLY/congregation/internal/log"
	"github.com/CZERTAINLY/congregation/internal/model"
	"github.com/CZERTAINLY/congregation/internal/present"
	"github.com/CZERTAINLY/congregation/internal/service"
)

func doRun(cmd *cobra.Command, argv []string) error {
	specs, err := taskSpecs(argv, config)
	if errors.Is(err, args.ErrHelp) {
		return cmd.Help()
	}
	if err != nil {
		return err
	}

	grace, err := config.Grace()
	if err != nil {
		return fmt.Errorf("grace_period: %w", err)
	}

	out := cmd.OutOrStdout()
	mode := present.ResolveMode(config.Mode, out)
	color := present.ColorAuto
	if config.NoColor {
		color = present.ColorNever
	}
	presenter := present.New(out, specs, present.Options{Mode: mode, Color: color})

	ctx := log.ContextAttrs(cmd.Context(),
		slog.Group(name,
			slog.String("run_id", uuid.NewString()),
			slog.Int("pid", os.Getpid()),
			slog.String("mode", string(mode)),
		),
	)

	sup := service.NewSupervisor(service.Options{
		Runner: service.RunnerOptions{
			Shell:   config.Shell,
			MaxLine: config.MaxLine,
		},
		GracePeriod: grace,
		MaxParallel: config.MaxParallel,
	}, presenter)

	ctx, stop := interruptible(ctx, sup)
	defer stop()

	res, err := sup.RunAll(ctx, specs, mode)
	if err != nil {
		return err
	}

	if mode == model.ModeInterleaved {
		if err := presenter.Summary(res); err != nil {
			slog.ErrorContext(ctx, "writing summary", "err", err)
		}
	}
	slog.DebugContext(ctx, "run finished", "status", res.Status.String(), "code", res.Code)
	exitCode = res.Code
	return nil
}

// taskSpecs prefers tasks from the command line over the config file.
func taskSpecs(argv []string, cfg model.Config) ([]model.TaskSpec, error) {
	specs := cfg.Tasks
	if len(argv) > 0 || len(specs) == 0 {
		var err error
		specs, err = args.Parse(name, argv)
		if err != nil {
			return nil, err
		}
	}
	return model.Normalize(specs, cfg.NameLength)
}

// interruptible cancels the returned context on the first SIGINT or SIGTERM
// and cuts the grace period short on the second one.
func interruptible(parent context.Context, sup *service.Supervisor) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		n := 0
		for {
			select {
			case sig := <-sigs:
				n++
				if n == 1 {
					slog.InfoContext(ctx, "stopping tasks", "signal", sig.String())
					cancel()
					continue
				}
				slog.WarnContext(ctx, "killing tasks", "signal", sig.String())
				sup.Hurry()
			case <-done:
				return
			}
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		close(done)
		cancel()
	}
}
