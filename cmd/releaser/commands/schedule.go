package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/releaser/internal/config"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/pipeline"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/scheduler"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	RunNow bool `name:"run-now" help:"Run one nightly release immediately after starting"`
}

func (s *ScheduleCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return ferrors.ConfigError("failed to load configuration").WithCause(err).Build()
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunSchedule(ctx, cfg, root.Config, s.RunNow)
}

// RunSchedule blocks running nightly releases until ctx is cancelled.
func RunSchedule(ctx context.Context, cfg *config.Config, configPath string, runNow bool) error {
	d, err := scheduler.NewDaemon(configPath, cfg, scheduledRelease)
	if err != nil {
		return ferrors.ConfigError("failed to create scheduler").WithCause(err).Build()
	}
	if runNow {
		go d.RunOnce(ctx)
	}
	slog.Info("Scheduler started, waiting for shutdown signal...", slog.String("cron", cfg.Schedule.Cron))
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("scheduler error: %w", err)
	}
	slog.Info("Scheduler stopped")
	return nil
}

// scheduledRelease runs one nightly release with the daemon's metrics.
func scheduledRelease(ctx context.Context, job scheduler.Job) error {
	s, err := openSession(ctx, job.Config)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := append(s.options("schedule", false), pipeline.WithRecorder(job.Recorder))
	o, err := pipeline.New(*job.Config, opts...)
	if err != nil {
		return err
	}
	report, err := o.Run(ctx, release.Request{RawVersion: job.Version})
	if report != nil {
		slog.Info("Nightly release report", logfields.Version(job.Version), slog.String("summary", report.Summary()))
	}
	return err
}
