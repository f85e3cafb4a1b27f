package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/eventstore"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Version string `arg:"" help:"Version whose runs to show"`
	Unlock  bool   `help:"Clear a run lock left behind by an interrupted run"`
	JSON    bool   `name:"json" help:"Print the runs as JSON"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return ferrors.ConfigError("failed to load configuration").WithCause(err).Build()
	}
	return RunHistory(context.Background(), cfg, h.Version, h.Unlock, h.JSON, os.Stdout)
}

// RunHistory prints what the journal recorded for version so an operator can
// resume a partially published release by hand.
func RunHistory(ctx context.Context, cfg *config.Config, version string, unlock, asJSON bool, out io.Writer) error {
	v, err := versioning.Resolve(version)
	if err != nil {
		return ferrors.ValidationError("invalid version").WithCause(err).Build()
	}
	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return ferrors.ConfigError("the release journal is disabled").
			WithContext("setting", "journal.enabled").
			Build()
	}
	defer func() { _ = store.Close() }()

	if unlock {
		if err := store.ForceUnlock(ctx, v.Canonical); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "lock for %s cleared\n", v.Canonical)
	}

	runs, err := eventstore.History(ctx, store, v.Canonical)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintf(out, "no runs recorded for %s\n", v.Canonical)
		return nil
	}
	for _, run := range runs {
		writeRun(out, run)
	}
	return nil
}

func writeRun(out io.Writer, run *eventstore.RunSummary) {
	header := fmt.Sprintf("run %s  %s  %s", run.RunID, run.Status, run.StartedAt.Local().Format(time.RFC3339))
	if run.Trigger != "" {
		header += "  (" + run.Trigger + ")"
	}
	if run.DryRun {
		header += "  dry-run"
	}
	_, _ = fmt.Fprintln(out, header)
	for _, name := range release.Stages {
		st, ok := run.Stages[string(name)]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-20s %s", name, st.Status)
		if st.Error != "" {
			line += "  " + st.Error
		}
		_, _ = fmt.Fprintln(out, line)
		for _, n := range st.Notes {
			_, _ = fmt.Fprintf(out, "    note: %s\n", n)
		}
	}
	if ok := run.Succeeded(); len(ok) > 0 {
		_, _ = fmt.Fprintln(out, "  done:")
		for _, it := range ok {
			_, _ = fmt.Fprintf(out, "    %-6s %s\n", it.Kind, it.Name)
		}
	}
	if failed := run.Failed(); len(failed) > 0 {
		_, _ = fmt.Fprintln(out, "  failed:")
		for _, it := range failed {
			_, _ = fmt.Fprintf(out, "    %-6s %s  %s\n", it.Kind, it.Name, it.Error)
		}
	}
	if run.ReleaseURL != "" {
		_, _ = fmt.Fprintf(out, "  release url: %s\n", run.ReleaseURL)
	}
	if run.ErrorMessage != "" {
		_, _ = fmt.Fprintf(out, "  error: %s\n", run.ErrorMessage)
	}
}
