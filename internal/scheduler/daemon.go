package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/metrics"
)

const nightlyJobName = "nightly-release"

// Job is one scheduled release.
type Job struct {
	// Config is a private copy with the prerelease flag forced on.
	Config   *config.Config
	Version  string
	Recorder metrics.Recorder
}

// RunFunc executes a scheduled release.
type RunFunc func(ctx context.Context, job Job) error

// NightlyVersion returns {base}-nightly.{YYYYMMDD} for day t. Build metadata
// on base stays at the end so the result still parses as a prerelease.
func NightlyVersion(base string, t time.Time) string {
	base = strings.TrimPrefix(strings.TrimSpace(base), "v")
	meta := ""
	if i := strings.IndexByte(base, '+'); i >= 0 {
		base, meta = base[:i], base[i:]
	}
	return fmt.Sprintf("%s-nightly.%s%s", base, t.UTC().Format("20060102"), meta)
}

// Daemon runs nightly releases on a cron schedule, reloads its configuration
// when the file changes and serves Prometheus metrics.
type Daemon struct {
	configPath string
	run        RunFunc
	now        func() time.Time
	debounce   time.Duration

	mu     sync.RWMutex
	cfg    *config.Config
	jobID  string
	cron   string
	sched  *Scheduler
	reg    *prom.Registry
	record *metrics.PrometheusRecorder
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithClock overrides the time source used for nightly versions.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithDebounce sets the configuration reload debounce.
func WithDebounce(dur time.Duration) Option {
	return func(d *Daemon) { d.debounce = dur }
}

// NewDaemon creates a daemon for an already loaded configuration.
func NewDaemon(configPath string, cfg *config.Config, run RunFunc, opts ...Option) (*Daemon, error) {
	if err := checkSchedule(cfg); err != nil {
		return nil, err
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	d := &Daemon{
		configPath: configPath,
		run:        run,
		now:        time.Now,
		cfg:        cfg,
		sched:      sched,
		reg:        reg,
		record:     metrics.NewPrometheusRecorder(reg, cfg.Metrics.Namespace),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func checkSchedule(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("configuration is required")
	}
	if cfg.Schedule.Cron == "" || cfg.Schedule.BaseVersion == "" {
		return errors.New("schedule.cron and schedule.base_version are required for scheduled releases")
	}
	return nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Registry returns the Prometheus registry served on the metrics endpoint.
func (d *Daemon) Registry() *prom.Registry { return d.reg }

// Run schedules the nightly job and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.schedule(ctx, d.Config().Schedule.Cron); err != nil {
		return err
	}
	d.sched.Start(ctx)
	defer func() {
		if err := d.sched.Stop(context.Background()); err != nil {
			slog.Warn("Scheduler shutdown error", logfields.Error(err))
		}
	}()

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.debounce, d.Reload)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	var srv *http.Server
	if listen := d.Config().Metrics.Listen; listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(d.reg))
		srv = &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			slog.Info("Serving metrics", slog.String("addr", listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

func (d *Daemon) schedule(ctx context.Context, expr string) error {
	id, err := d.sched.ScheduleCron(nightlyJobName, expr, func() { d.RunOnce(ctx) })
	if err != nil {
		return err
	}
	d.mu.Lock()
	old := d.jobID
	d.jobID, d.cron = id, expr
	d.mu.Unlock()
	if old != "" {
		if err := d.sched.Remove(old); err != nil {
			slog.Warn("Failed to remove previous schedule", logfields.Error(err))
		}
	}
	return nil
}

// RunOnce executes one nightly release for today's date. Failures are logged;
// the schedule keeps running.
func (d *Daemon) RunOnce(ctx context.Context) {
	cfg := *d.Config()
	cfg.Release.Prerelease = config.PrereleaseAlways
	version := NightlyVersion(cfg.Schedule.BaseVersion, d.now())

	slog.Info("Executing scheduled release", logfields.Version(version))
	if err := d.run(ctx, Job{Config: &cfg, Version: version, Recorder: d.record}); err != nil {
		slog.Error("Scheduled release failed", logfields.Version(version), logfields.Error(err))
		return
	}
	slog.Info("Scheduled release finished", logfields.Version(version))
}

// Reload loads the configuration file again and reschedules the job when the
// cron expression changed. An invalid file leaves the running configuration
// in place.
func (d *Daemon) Reload(ctx context.Context) error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}
	if err := checkSchedule(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	d.mu.RLock()
	current, cron := d.cfg, d.cron
	d.mu.RUnlock()

	if cfg.Schedule.Cron != cron {
		if err := d.schedule(ctx, cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("failed to apply new schedule: %w", err)
		}
	}
	if cfg.Metrics.Listen != current.Metrics.Listen {
		slog.Warn("Metrics listen address change requires a restart", slog.String("addr", cfg.Metrics.Listen))
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// JobID returns the ID of the active nightly job.
func (d *Daemon) JobID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.jobID
}
