package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/eventstore"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/notify"
	"git.home.luguber.info/inful/releaser/internal/pipeline"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path" default:"releaser.yaml" type:"path"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	LogLevel string           `name:"log-level" help:"Log level (debug, info, warn, error)" env:"RELEASER_LOG_LEVEL"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Release  ReleaseCmd  `cmd:"" help:"Build, tag and publish one version"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	History  HistoryCmd  `cmd:"" help:"Show the recorded runs of a version"`
	Schedule ScheduleCmd `cmd:"" help:"Run nightly releases on the configured cron schedule"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level, err := c.level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// level resolves the log level. RELEASER_LOG_LEVEL wins over -v.
func (c *CLI) level() (slog.Level, error) {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	if c.LogLevel != "" {
		if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
			return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
		}
	}
	return level, nil
}

// journalPath resolves a relative journal path against the repository.
func journalPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Journal.Path) || cfg.Git.RepoDir == "" {
		return cfg.Journal.Path
	}
	return filepath.Join(cfg.Git.RepoDir, cfg.Journal.Path)
}

// openJournal opens the release journal, or returns nil when it is disabled.
func openJournal(cfg *config.Config) (*eventstore.SQLiteStore, error) {
	if !cfg.Journal.IsEnabled() {
		return nil, nil
	}
	return eventstore.NewSQLiteStore(journalPath(cfg))
}

// session holds the collaborators shared by every run of one command.
type session struct {
	store   *eventstore.SQLiteStore
	nats    *notify.NATSClient
	subject string
}

// openSession opens the journal and, when configured, the NATS connection.
// A failing notification bus is logged and skipped; it never blocks a release.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	store, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{store: store, subject: cfg.Notify.Subject}
	if cfg.Notify.NATSURL != "" {
		client, err := notify.NewNATSClient(ctx, cfg.Notify)
		if err != nil {
			slog.Warn("Release notifications disabled", logfields.Error(err))
		} else {
			s.nats = client
		}
	}
	return s, nil
}

// options wires the journal and notifier into an orchestrator. Dry runs are
// journaled but take no lock.
func (s *session) options(trigger string, dryRun bool) []pipeline.Option {
	var opts []pipeline.Option
	if s.store != nil {
		opts = append(opts, pipeline.WithObservers(eventstore.NewJournal(s.store, trigger)))
		if !dryRun {
			opts = append(opts, pipeline.WithLocker(s.store))
		}
	}
	if s.nats != nil {
		opts = append(opts, pipeline.WithObservers(notify.NewNotifier(s.nats, s.subject)))
	}
	return opts
}

func (s *session) Close() {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Warn("Failed to close NATS connection", logfields.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close release journal", logfields.Error(err))
		}
	}
}
