package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/releaser/internal/config"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/pipeline"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// errAborted is returned when the operator declines the confirmation prompt.
var errAborted = errors.New("release aborted by user")

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct {
	Version string `arg:"" help:"Version to release, with or without a leading v"`
	DryRun  bool   `name:"dry-run" help:"Resolve and build, but only log what tagging and publishing would do"`
	Yes     bool   `short:"y" help:"Do not ask for confirmation"`
	JSON    bool   `name:"json" help:"Print the run report as JSON instead of a summary"`
}

func (r *ReleaseCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return ferrors.ConfigError("failed to load configuration").WithCause(err).Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !r.DryRun && !r.Yes && isatty.IsTerminal(os.Stdin.Fd()) {
		if err := confirm(cfg, r.Version); err != nil {
			return err
		}
	}
	return RunRelease(ctx, cfg, r.Version, r.DryRun, r.JSON, os.Stdout)
}

// RunRelease executes one release and prints the report to out. The returned
// error is the classified pipeline failure, if any.
func RunRelease(ctx context.Context, cfg *config.Config, version string, dryRun, asJSON bool, out io.Writer) error {
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := append(s.options("cli", dryRun), pipeline.WithDryRun(dryRun))
	o, err := pipeline.New(*cfg, opts...)
	if err != nil {
		return err
	}
	report, runErr := o.Run(ctx, release.Request{RawVersion: version})
	if err := printReport(out, report, asJSON); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printReport(out io.Writer, report *release.Report, asJSON bool) error {
	if report == nil {
		return nil
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := fmt.Fprint(out, report.Summary())
	return err
}

// confirm asks the operator before anything is tagged or published.
func confirm(cfg *config.Config, raw string) error {
	v, err := versioning.Resolve(raw)
	if err != nil {
		// The pipeline reports invalid versions with the proper exit code.
		return nil
	}
	var where []string
	if cfg.Release.Enabled() {
		where = append(where, fmt.Sprintf("%s %s/%s", cfg.Release.Forge, cfg.Release.Owner, cfg.Release.Repo))
	}
	for _, t := range cfg.Targets {
		where = append(where, t.Name)
	}
	label := fmt.Sprintf("Tag %s and publish %s", v.Tag, cfg.Product.Name)
	if len(where) > 0 {
		label += " to " + strings.Join(where, ", ")
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	result, err := prompt.Run()
	if err != nil || !strings.EqualFold(result, "y") {
		return ferrors.NewError(ferrors.CategoryValidation, errAborted.Error()).WithCause(errAborted).Build()
	}
	return nil
}
