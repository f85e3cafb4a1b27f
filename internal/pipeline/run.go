package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/releaser/internal/build"
	"git.home.luguber.info/inful/releaser/internal/changelog"
	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/git"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/metrics"
	"git.home.luguber.info/inful/releaser/internal/publish"
	"git.home.luguber.info/inful/releaser/internal/registry"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/retry"
	"git.home.luguber.info/inful/releaser/internal/versioning"
	"git.home.luguber.info/inful/releaser/internal/workspace"
)

// stageSkipped marks a stage that did not apply to this run.
type stageSkipped struct{ reason string }

func (s stageSkipped) Error() string { return s.reason }

// run is the mutable state of one Orchestrator.Run call.
type run struct {
	o      *Orchestrator
	cfg    *config.Config
	report *release.Report
	log    *slog.Logger

	version   versioning.Resolved
	bindings  []registry.Binding
	artifacts []release.Artifact
	// ws lives for the whole run so the package directory can be staged in it.
	ws *workspace.Manager
	// draft is set when a partial build is published as a draft release.
	draft  bool
	locked bool
}

func newRun(o *Orchestrator, req release.Request) *run {
	rep := release.NewReport(uuid.NewString(), req.RawVersion)
	rep.DryRun = o.dryRun
	return &run{
		o:      o,
		cfg:    &o.cfg,
		report: rep,
		log:    slog.With(logfields.RunID(rep.RunID)),
	}
}

func (r *run) execute(ctx context.Context) error {
	r.log.Info("Release started", slog.String("raw_version", r.report.RawVersion), slog.Bool("dry_run", r.o.dryRun))

	// RunStarted is emitted after resolution so observers key the run by its
	// canonical version.
	start := time.Now()
	err := r.resolve(ctx)
	if r.locked {
		defer r.unlock(ctx)
	}
	r.o.observers.RunStarted(ctx, r.report)
	if err = r.finishStage(ctx, release.StageResolving, time.Since(start), err); err != nil {
		return r.fail(ctx, release.StageResolving, err)
	}
	defer r.cleanupWorkspace()

	r.report.SetState(release.StateOf(release.StageBuilding))
	if err := r.stage(ctx, release.StageBuilding, r.build); err != nil {
		if r.draft {
			r.publishPartialDraft(ctx)
		}
		return r.fail(ctx, release.StageBuilding, err)
	}

	r.report.SetState(release.StateOf(release.StageTagging))
	if err := r.stage(ctx, release.StageTagging, r.tag); err != nil {
		return r.fail(ctx, release.StageTagging, err)
	}

	r.report.SetState(release.StatePublishing)
	var relErr, pkgErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relErr = r.stage(ctx, release.StagePublishingRelease, r.publishRelease)
	}()
	go func() {
		defer wg.Done()
		pkgErr = r.stage(ctx, release.StagePublishingPackages, r.publishPackages)
	}()
	wg.Wait()

	switch {
	case relErr != nil:
		return r.fail(ctx, release.StagePublishingRelease, errors.Join(relErr, pkgErr))
	case pkgErr != nil:
		return r.fail(ctx, release.StagePublishingPackages, pkgErr)
	}
	r.report.SetState(release.StateDone)
	return r.finish(ctx, nil)
}

// publishPartialDraft publishes the platforms that did build as a draft
// release. Nothing is tagged and no package is published.
func (r *run) publishPartialDraft(ctx context.Context) {
	r.skipStage(ctx, release.StageTagging, "partial build: not tagged")
	r.report.SetState(release.StatePublishing)
	if err := r.stage(ctx, release.StagePublishingRelease, r.publishRelease); err != nil {
		r.log.Error("Draft release for partial build failed", logfields.Error(err))
	}
	r.skipStage(ctx, release.StagePublishingPackages, "partial build: packages not published")
}

// stage runs fn as one pipeline stage and records its outcome.
func (r *run) stage(ctx context.Context, name release.StageName, fn func(context.Context) error) error {
	r.log.Info("Stage started", logfields.Stage(string(name)))
	start := time.Now()
	err := fn(ctx)
	return r.finishStage(ctx, name, time.Since(start), err)
}

func (r *run) skipStage(ctx context.Context, name release.StageName, reason string) {
	_ = r.finishStage(ctx, name, 0, stageSkipped{reason: reason})
}

// finishStage records the outcome and notifies observers. A skipped stage
// is not an error.
func (r *run) finishStage(ctx context.Context, name release.StageName, d time.Duration, err error) error {
	status, label := release.StatusSucceeded, metrics.ResultSuccess
	var skip stageSkipped
	switch {
	case errors.As(err, &skip):
		status, label = release.StatusSkipped, metrics.ResultSkipped
		r.report.AddStageNote(name, skip.reason)
		err = nil
	case err != nil:
		status, label = release.StatusFailed, metrics.ResultFailed
	}
	r.report.RecordStage(name, status, d, err)
	r.o.recorder.ObserveStageDuration(string(name), d)
	r.o.recorder.IncStageResult(string(name), label)

	attrs := []any{logfields.Stage(string(name)), slog.String("status", string(status)), logfields.Duration(d)}
	if err != nil {
		r.log.Error("Stage failed", append(attrs, logfields.Error(err))...)
	} else {
		r.log.Info("Stage finished", attrs...)
	}
	r.o.observers.StageChanged(ctx, r.report, r.report.Stage(name))
	return err
}

// item records one fan-out member outcome as soon as it is known.
func (r *run) item(ctx context.Context) func(release.ItemOutcome) {
	return func(it release.ItemOutcome) {
		r.report.AddItem(it)
		r.o.observers.ItemRecorded(ctx, r.report, it)
	}
}

func (r *run) fail(ctx context.Context, stage release.StageName, err error) error {
	r.report.SetState(release.StateFailed)
	return r.finish(ctx, classify(r.report.RunID, stage, err))
}

func (r *run) finish(ctx context.Context, runErr error) error {
	r.report.Finish()
	state := r.report.CurrentState()
	r.o.recorder.ObserveRunDuration(r.report.End.Sub(r.report.Start))
	r.o.recorder.IncRunOutcome(string(state))
	r.o.observers.RunFinished(ctx, r.report, runErr)

	if runErr != nil {
		r.log.Error("Release failed", logfields.Tag(r.report.Tag), logfields.Error(runErr))
		return runErr
	}
	r.log.Info("Release finished", logfields.Tag(r.report.Tag), slog.String("state", string(state)))
	return nil
}

// resolve validates the version and stamps the build identity. It then takes
// the run lock, refuses a tag that already exists and prepares the registry
// targets, so none of these problems surface after something was built.
func (r *run) resolve(ctx context.Context) error {
	v, err := versioning.Resolve(r.report.RawVersion)
	if err != nil {
		return err
	}
	v = r.o.stamper.Stamp(v)
	r.version = v
	r.report.Version = v.Canonical
	r.report.Tag = v.Tag
	r.report.BuildID = v.BuildID
	r.log = r.log.With(logfields.Version(v.Canonical))
	r.log.Info("Version resolved", logfields.Tag(v.Tag), slog.String("build_id", v.BuildID))

	if r.o.locker != nil {
		if err := r.o.locker.AcquireLock(ctx, v.Canonical, r.report.RunID); err != nil {
			return err
		}
		r.locked = true
	}
	if err := r.checkTagFree(); err != nil {
		return err
	}
	bindings, err := r.o.targets(v)
	if err != nil {
		return err
	}
	r.bindings = bindings
	return nil
}

// checkTagFree fails when the release tag already exists, so nothing is
// built or committed for a release that cannot be tagged.
func (r *run) checkTagFree() error {
	exists, err := r.o.tagger.TagExists(r.version.Tag)
	if err != nil {
		return err
	}
	if exists {
		return &release.TagExistsError{Tag: r.version.Tag}
	}
	return nil
}

func (r *run) cleanupWorkspace() {
	if r.ws == nil {
		return
	}
	if err := r.ws.Cleanup(); err != nil {
		r.log.Warn("Workspace cleanup failed", logfields.Error(err))
	}
}

func (r *run) unlock(ctx context.Context) {
	if err := r.o.locker.ReleaseLock(context.WithoutCancel(ctx), r.version.Canonical, r.report.RunID); err != nil {
		r.log.Warn("Failed to release run lock", logfields.Error(err))
	}
}

func (r *run) build(ctx context.Context) error {
	r.ws = workspace.NewManager(r.cfg.Build.WorkspaceDir, r.cfg.Build.KeepWorkspace)
	if err := r.ws.Create(r.report.RunID); err != nil {
		return err
	}

	b := build.NewBuilder(r.cfg.Build, r.cfg.Product.Name, r.o.toolchain,
		build.WithRecorder(r.o.recorder),
		build.WithTimeout(r.cfg.Timeouts.Build),
		build.WithWorkspace(r.ws),
		build.WithItemObserver(r.item(ctx)),
	)
	res, err := b.BuildAll(ctx, r.version, r.o.platforms)
	if err != nil {
		if r.cfg.Policy.OnPartialBuild == config.PartialBuildDraft && res != nil && len(res.Artifacts) > 0 && r.o.client != nil {
			r.draft = true
			r.artifacts = res.Artifacts
			r.report.SetArtifacts(r.artifacts)
			r.report.AddStageNote(release.StageBuilding, fmt.Sprintf(
				"%d of %d platforms built; publishing them as a draft release", len(res.Artifacts), len(r.o.platforms)))
		}
		return err
	}
	r.artifacts = res.Artifacts
	if res.Checksums != nil {
		r.artifacts = append(r.artifacts, *res.Checksums)
	}
	r.report.SetArtifacts(r.artifacts)
	return nil
}

func (r *run) tag(ctx context.Context) error {
	v := r.version
	// The tag may have appeared while building.
	if err := r.checkTagFree(); err != nil {
		return err
	}
	commitMsg, err := git.RenderMessage(r.cfg.Git.CommitMessage, v)
	if err != nil {
		return err
	}
	committed, err := r.o.tagger.StageGenerated(ctx, r.cfg.Git.GeneratedPaths, commitMsg)
	switch {
	case errors.Is(err, release.ErrNothingToCommit):
		r.report.AddStageNote(release.StageTagging, "nothing to commit; tagging current HEAD")
	case err != nil:
		return err
	}

	tagMsg, err := git.RenderMessage(r.cfg.Git.TagMessage, v)
	if err != nil {
		return err
	}
	if _, err := r.o.tagger.CreateTag(ctx, v.Tag, tagMsg); err != nil {
		return err
	}
	return r.o.tagger.Push(ctx, v.Tag, committed)
}

func (r *run) publishRelease(ctx context.Context) error {
	if r.o.client == nil {
		return stageSkipped{reason: "no hosted release configured"}
	}
	opts := []publish.Option{
		publish.WithTimeout(r.cfg.Timeouts.Publish),
		publish.WithRetryPolicy(retry.FromConfig(r.cfg.Release.Retry)),
		publish.WithRecorder(r.o.recorder),
		publish.WithItemObserver(r.item(ctx)),
	}
	if notes := r.notes(); notes != "" {
		opts = append(opts, publish.WithNotes(notes))
	}
	if r.draft {
		opts = append(opts, publish.WithDraft(true))
	}
	out, err := publish.NewPublisher(r.o.client, r.cfg.Release, r.cfg.Product, opts...).Publish(ctx, r.version, r.artifacts)
	if out != nil && out.Record != nil {
		r.report.SetRecord(out.Record)
	}
	return err
}

// notes returns the changelog section for the version, empty when no
// changelog is configured or it has no entry for this version.
func (r *run) notes() string {
	path := r.cfg.Release.Changelog
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) && r.cfg.Git.RepoDir != "" {
		path = filepath.Join(r.cfg.Git.RepoDir, path)
	}
	section, err := changelog.ReadSection(path, r.version.Canonical)
	if err != nil {
		r.log.Warn("No changelog entry for release notes", logfields.Path(path), logfields.Error(err))
		r.report.AddStageNote(release.StagePublishingRelease, "changelog: "+err.Error())
		return ""
	}
	return section
}

func (r *run) publishPackages(ctx context.Context) error {
	if len(r.bindings) == 0 {
		return stageSkipped{reason: "no package targets configured"}
	}
	p := registry.NewPublisher(r.bindings,
		registry.WithTimeout(r.cfg.Timeouts.Publish),
		registry.WithRecorder(r.o.recorder),
		registry.WithItemObserver(r.item(ctx)),
	)
	// Targets see only this run's artifacts, never older files left in output_dir.
	paths := make([]string, len(r.artifacts))
	for i, a := range r.artifacts {
		paths[i] = a.Path
	}
	dir, err := r.ws.Collect("packages", paths)
	if err != nil {
		return fmt.Errorf("stage package directory: %w", err)
	}
	_, err = p.PublishAll(ctx, dir)
	return err
}
