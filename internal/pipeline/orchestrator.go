package pipeline

import (
	"context"
	"net/http"
	"time"

	"git.home.luguber.info/inful/releaser/internal/build"
	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/forge"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/git"
	"git.home.luguber.info/inful/releaser/internal/metrics"
	"git.home.luguber.info/inful/releaser/internal/registry"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/retry"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// Tagger is the version-control side of a release.
type Tagger interface {
	TagExists(tag string) (bool, error)
	StageGenerated(ctx context.Context, allowedPaths []string, message string) (bool, error)
	CreateTag(ctx context.Context, tag, message string) (string, error)
	Push(ctx context.Context, tag string, committed bool) error
}

// TargetFactory returns the package registry bindings for a resolved version.
type TargetFactory func(v versioning.Resolved) ([]registry.Binding, error)

// Locker guards against two runs of the same version at once.
type Locker interface {
	AcquireLock(ctx context.Context, version, runID string) error
	ReleaseLock(ctx context.Context, version, runID string) error
}

// Orchestrator drives one release through
// resolving → building → tagging → (publishing_release ‖ publishing_packages) → done.
type Orchestrator struct {
	cfg       config.Config
	platforms []release.Platform

	toolchain  build.Toolchain
	tagger     Tagger
	client     forge.ReleaseClient
	httpClient *http.Client
	targets    TargetFactory
	locker     Locker
	observers  observers
	recorder   metrics.Recorder
	stamper    versioning.Stamper
	dryRun     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithToolchain replaces the toolchain selected by build.toolchain.
func WithToolchain(tc build.Toolchain) Option {
	return func(o *Orchestrator) { o.toolchain = tc }
}

// WithTagger replaces the go-git tagger.
func WithTagger(t Tagger) Option {
	return func(o *Orchestrator) { o.tagger = t }
}

// WithReleaseClient replaces the hosted release client selected by release.forge.
func WithReleaseClient(c forge.ReleaseClient) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithHTTPClient sets the HTTP client used by the default release client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = c }
}

// WithTargets replaces the registry targets built from the targets section.
func WithTargets(f TargetFactory) Option {
	return func(o *Orchestrator) { o.targets = f }
}

// WithLocker enables the per-version run lock.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithObservers registers progress observers (journal, notifications).
func WithObservers(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers.add(obs...) }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithDryRun resolves and builds but only logs what tagging and publishing
// would do.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithClock overrides the time source used for the build date.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.stamper.Now = now }
}

// New creates an orchestrator for cfg. Collaborators not supplied through
// options are built from the configuration.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	platforms, err := cfg.Build.PlatformList()
	if err != nil {
		return nil, ferrors.ConfigError("invalid build platforms").WithCause(err).Build()
	}
	o := &Orchestrator{
		cfg:       cfg,
		platforms: platforms,
		recorder:  metrics.NoopRecorder{},
		stamper:   versioning.Stamper{RepoDir: cfg.Git.RepoDir},
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.toolchain == nil {
		o.toolchain = build.NewToolchain(cfg.Build, cfg.Git.RepoDir, build.ExecRunner)
	}
	if o.tagger == nil {
		o.tagger = git.NewTagger(cfg.Git, cfg.Timeouts.VCS,
			git.WithPushRetry(retry.FromConfig(cfg.Release.Retry)),
			git.WithExcludedDirs(cfg.Build.OutputDir, cfg.Build.WorkspaceDir),
		)
	}
	if o.client == nil && cfg.Release.Enabled() {
		c, err := forge.NewReleaseClient(cfg.Release, o.httpClient)
		if err != nil {
			return nil, err
		}
		o.client = c
	}
	if o.targets == nil {
		o.targets = func(v versioning.Resolved) ([]registry.Binding, error) {
			return registry.FromConfig(cfg.Targets, registry.Vars{
				Product: cfg.Product.Name,
				Version: v.Canonical,
				Tag:     v.Tag,
			}, build.ExecRunner)
		}
	}
	if o.dryRun {
		o.applyDryRun()
	}
	return o, nil
}

// Platforms returns the declared build platforms in declaration order.
func (o *Orchestrator) Platforms() []release.Platform {
	return append([]release.Platform(nil), o.platforms...)
}

// DryRun reports whether external mutations are replaced by logging.
func (o *Orchestrator) DryRun() bool { return o.dryRun }

// Run executes one release. The report is always returned, also on failure,
// and names every stage and fan-out member that succeeded or failed. The
// error is nil only when every stage and every member succeeded; otherwise it
// is a *ferrors.ClassifiedError wrapping the typed release errors.
func (o *Orchestrator) Run(ctx context.Context, req release.Request) (*release.Report, error) {
	r := newRun(o, req)
	err := r.execute(ctx)
	return r.report, err
}
