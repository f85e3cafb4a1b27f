package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/metrics"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/versioning"
	"git.home.luguber.info/inful/releaser/internal/workspace"
)

// errNotScheduled marks platforms skipped after an earlier failure.
var errNotScheduled = errors.New("not scheduled after an earlier platform failed")

// Result is the outcome of BuildAll. Artifacts holds the successful builds
// in platform declaration order; it is complete only when BuildAll returns nil.
type Result struct {
	Artifacts []release.Artifact
	Outcomes  []release.ItemOutcome
	// Checksums is the sha256 manifest asset, nil when disabled or when any build failed.
	Checksums *release.Artifact
}

// Builder fans platform builds out to a Toolchain.
type Builder struct {
	toolchain     Toolchain
	product       string
	outputDir     string
	concurrency   int
	stopOnFailure bool
	checksums     bool
	timeout       time.Duration
	isZip         func(release.Platform) bool
	workspace     *workspace.Manager
	recorder      metrics.Recorder
	onItem        func(release.ItemOutcome)
}

// Option configures a Builder.
type Option func(*Builder)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithTimeout bounds every platform build.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// WithWorkspace sets the scratch directory manager.
func WithWorkspace(ws *workspace.Manager) Option {
	return func(b *Builder) { b.workspace = ws }
}

// WithItemObserver is called once per platform as soon as its outcome is known.
func WithItemObserver(fn func(release.ItemOutcome)) Option {
	return func(b *Builder) { b.onItem = fn }
}

// NewBuilder constructs a builder from the build and product configuration.
func NewBuilder(cfg config.BuildConfig, product string, tc Toolchain, opts ...Option) *Builder {
	stop := true
	if cfg.StopOnFailure != nil {
		stop = *cfg.StopOnFailure
	}
	outputDir := cfg.OutputDir
	if abs, err := filepath.Abs(outputDir); err == nil {
		outputDir = abs
	}
	b := &Builder{
		toolchain:     tc,
		product:       product,
		outputDir:     outputDir,
		concurrency:   cfg.Concurrency,
		stopOnFailure: stop,
		checksums:     cfg.Checksums,
		isZip:         cfg.IsZip,
		recorder:      metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ArtifactFileName returns the artifact name for p.
func (b *Builder) ArtifactFileName(v versioning.Resolved, p release.Platform) string {
	format := ArchiveTarGz
	if b.isZip != nil && b.isZip(p) {
		format = ArchiveZip
	}
	return versioning.ArtifactName(b.product, v.Canonical, p, string(format))
}

type platformResult struct {
	artifact release.Artifact
	err      error
	skipped  bool
}

// BuildAll builds every platform and returns only after all scheduled builds
// have finished. Any failed or skipped platform makes the returned error
// non-nil; the error joins one *release.BuildFailedError per failed platform.
func (b *Builder) BuildAll(ctx context.Context, v versioning.Resolved, platforms []release.Platform) (*Result, error) {
	if len(platforms) == 0 {
		return &Result{}, errors.New("no platforms declared")
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = b.ArtifactFileName(v, p)
	}
	if err := workspace.EnsureOutputDir(b.outputDir, append(names, b.checksumName(v))); err != nil {
		return &Result{}, err
	}
	ws := b.workspace
	if ws == nil {
		ws = workspace.NewManager("", false)
		if err := ws.Create(""); err != nil {
			return &Result{}, err
		}
		defer func() { _ = ws.Cleanup() }()
	}

	concurrency := b.concurrency
	if concurrency <= 0 || concurrency > len(platforms) {
		concurrency = len(platforms)
	}
	b.recorder.SetBuildConcurrency(concurrency)

	results := make([]platformResult, len(platforms))
	type buildTask struct{ idx int }
	tasks := make(chan buildTask)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false

	worker := func() {
		defer wg.Done()
		for task := range tasks {
			p := platforms[task.idx]
			start := time.Now()
			art, err := b.buildOne(ctx, ws, v, p, names[task.idx])
			dur := time.Since(start)
			b.recorder.ObservePlatformBuildDuration(p.String(), dur, err == nil)
			mu.Lock()
			results[task.idx] = platformResult{artifact: art, err: err}
			if err != nil {
				failed = true
			}
			mu.Unlock()
			if err != nil {
				slog.Error("Platform build failed", logfields.Platform(p.String()), logfields.Duration(dur), logfields.Error(err))
			} else {
				slog.Info("Platform built", logfields.Platform(p.String()), logfields.Artifact(art.Name), logfields.Duration(dur))
			}
			b.notify(p, err, false)
		}
	}
	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}
	for i, p := range platforms {
		mu.Lock()
		stop := failed && b.stopOnFailure
		mu.Unlock()
		if stop {
			results[i] = platformResult{err: &release.BuildFailedError{Platform: p, Err: errNotScheduled}, skipped: true}
			slog.Warn("Skipping platform after earlier failure", logfields.Platform(p.String()))
			b.notify(p, errNotScheduled, true)
			continue
		}
		tasks <- buildTask{idx: i}
	}
	close(tasks)
	wg.Wait()

	res := &Result{}
	var errs []error
	for i, r := range results {
		item := release.ItemOutcome{Stage: release.StageBuilding, Kind: release.ItemBuild, Name: platforms[i].String(), Status: release.StatusSucceeded}
		switch {
		case r.skipped:
			item.Status = release.StatusSkipped
			item.Error = errNotScheduled.Error()
			errs = append(errs, r.err)
		case r.err != nil:
			item.Status = release.StatusFailed
			item.Error = r.err.Error()
			errs = append(errs, r.err)
		default:
			res.Artifacts = append(res.Artifacts, r.artifact)
		}
		res.Outcomes = append(res.Outcomes, item)
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	if b.checksums {
		sums, err := writeChecksums(filepath.Join(b.outputDir, b.checksumName(v)), res.Artifacts)
		if err != nil {
			return res, fmt.Errorf("write checksums: %w", err)
		}
		res.Checksums = sums
	}
	return res, nil
}

func (b *Builder) checksumName(v versioning.Resolved) string {
	return fmt.Sprintf("%s-%s-checksums.txt", b.product, v.Canonical)
}

func (b *Builder) notify(p release.Platform, err error, skipped bool) {
	if b.onItem == nil {
		return
	}
	item := release.ItemOutcome{Stage: release.StageBuilding, Kind: release.ItemBuild, Name: p.String(), Status: release.StatusSucceeded}
	switch {
	case skipped:
		item.Status = release.StatusSkipped
		item.Error = err.Error()
	case err != nil:
		item.Status = release.StatusFailed
		item.Error = err.Error()
	}
	b.onItem(item)
}

// buildOne runs the toolchain for p and checks that exactly the expected file exists.
func (b *Builder) buildOne(ctx context.Context, ws *workspace.Manager, v versioning.Resolved, p release.Platform, name string) (release.Artifact, error) {
	fail := func(err error) (release.Artifact, error) {
		return release.Artifact{}, &release.BuildFailedError{Platform: p, Err: err}
	}
	workDir, err := ws.CreateSubdir(p.String())
	if err != nil {
		return fail(err)
	}
	expected := filepath.Join(b.outputDir, name)
	format := ArchiveTarGz
	if b.isZip != nil && b.isZip(p) {
		format = ArchiveZip
	}
	bctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	got, err := b.toolchain.Build(bctx, Request{
		Product:  b.product,
		Platform: p,
		Version:  v,
		WorkDir:  workDir,
		Output:   expected,
		Archive:  format,
	})
	if err != nil {
		if errors.Is(bctx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Errorf("timed out after %s: %w", b.timeout, err))
		}
		return fail(err)
	}
	if filepath.Clean(got) != filepath.Clean(expected) {
		return fail(fmt.Errorf("toolchain produced %s, expected %s", got, expected))
	}
	info, err := os.Stat(expected)
	if err != nil {
		return fail(fmt.Errorf("expected artifact missing: %w", err))
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("expected artifact %s is not a regular file", expected))
	}
	return release.Artifact{
		Platform:    p,
		Path:        expected,
		Name:        name,
		ContentType: release.ContentTypeFor(name),
	}, nil
}
