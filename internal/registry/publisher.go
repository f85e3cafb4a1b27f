package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/metrics"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// Binding pairs a target with the directory it publishes. An empty Dir uses
// the directory passed to PublishAll.
type Binding struct {
	Target Target
	Dir    string
}

// Publisher fans a package directory out to every configured target.
type Publisher struct {
	bindings []Binding
	timeout  time.Duration
	recorder metrics.Recorder
	onItem   func(release.ItemOutcome)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTimeout bounds each target publish.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithItemObserver is called once per target as soon as its outcome is known.
func WithItemObserver(fn func(release.ItemOutcome)) Option {
	return func(p *Publisher) { p.onItem = fn }
}

// NewPublisher creates a publisher over bindings.
func NewPublisher(bindings []Binding, opts ...Option) *Publisher {
	p := &Publisher{bindings: bindings, recorder: metrics.NoopRecorder{}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Targets returns the names of the configured targets.
func (p *Publisher) Targets() []string {
	names := make([]string, len(p.bindings))
	for i, b := range p.bindings {
		names[i] = b.Target.Name()
	}
	return names
}

// PublishAll publishes to every target concurrently and waits for all of
// them. A failing target never prevents the others from being attempted; the
// returned error joins one *release.PublishError per failed target.
func (p *Publisher) PublishAll(ctx context.Context, dir string) ([]release.ItemOutcome, error) {
	items := make([]release.ItemOutcome, len(p.bindings))
	errs := make([]error, len(p.bindings))

	var wg sync.WaitGroup
	for i, b := range p.bindings {
		wg.Add(1)
		go func(i int, b Binding) {
			defer wg.Done()
			items[i], errs[i] = p.publishOne(ctx, b, dir)
			if p.onItem != nil {
				p.onItem(items[i])
			}
		}(i, b)
	}
	wg.Wait()

	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return items, errors.Join(failed...)
}

func (p *Publisher) publishOne(ctx context.Context, b Binding, dir string) (release.ItemOutcome, error) {
	name := b.Target.Name()
	if b.Dir != "" {
		dir = b.Dir
	}
	item := release.ItemOutcome{Stage: release.StagePublishingPackages, Kind: release.ItemTarget, Name: name, Attempts: 1}

	tctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := b.Target.Publish(tctx, dir)
	dur := time.Since(start)
	p.recorder.IncTargetPublishResult(name, metrics.ResultFor(err == nil))

	if err != nil {
		perr := &release.PublishError{Target: name, Err: err}
		item.Status = release.StatusFailed
		item.Error = perr.Error()
		slog.Error("Package publish failed", logfields.Target(name), logfields.Path(dir), logfields.Duration(dur), logfields.Error(err))
		return item, perr
	}
	item.Status = release.StatusSucceeded
	slog.Info("Package published", logfields.Target(name), logfields.Path(dir), logfields.Duration(dur))
	return item, nil
}
