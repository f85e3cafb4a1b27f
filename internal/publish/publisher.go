package publish

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"text/template"
	"time"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/forge"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/metrics"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/retry"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// DefaultTitle is used when release.title is empty.
const DefaultTitle = "{{.ProductTitle}} {{.Version}}"

// Outcome is the result of Publish. Record is nil when creation failed.
type Outcome struct {
	Record *release.Record
	Items  []release.ItemOutcome
}

// Publisher creates a release record and uploads assets to it.
type Publisher struct {
	client       forge.ReleaseClient
	cfg          config.ReleaseConfig
	productName  string
	productTitle string
	body         string
	notes        string
	draft        bool
	policy       retry.Policy
	concurrency  int
	timeout      time.Duration
	recorder     metrics.Recorder
	onItem       func(release.ItemOutcome)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithNotes replaces the rendered release.body with verbatim notes, e.g. a
// changelog section. Empty notes are ignored.
func WithNotes(notes string) Option {
	return func(p *Publisher) { p.notes = notes }
}

// WithDraft forces the record to be created as a draft.
func WithDraft(draft bool) Option {
	return func(p *Publisher) { p.draft = p.draft || draft }
}

// WithTimeout bounds every client call.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

// WithRetryPolicy replaces the policy derived from release.retry.
func WithRetryPolicy(rp retry.Policy) Option {
	return func(p *Publisher) { p.policy = rp }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithItemObserver is called once per asset as soon as its outcome is known.
func WithItemObserver(fn func(release.ItemOutcome)) Option {
	return func(p *Publisher) { p.onItem = fn }
}

// NewPublisher creates a Publisher for client.
func NewPublisher(client forge.ReleaseClient, cfg config.ReleaseConfig, product config.ProductConfig, opts ...Option) *Publisher {
	p := &Publisher{
		client:       client,
		cfg:          cfg,
		productName:  product.Name,
		productTitle: product.Title,
		body:         cfg.Body,
		draft:        cfg.Draft,
		policy:       retry.FromConfig(cfg.Retry),
		concurrency:  cfg.UploadConcurrency,
		recorder:     metrics.NoopRecorder{},
	}
	if p.productTitle == "" {
		p.productTitle = product.Name
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type textData struct {
	Product      string
	ProductTitle string
	Version      string
	Tag          string
}

func (p *Publisher) render(name, tmpl string, v versioning.Resolved) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, textData{
		Product:      p.productName,
		ProductTitle: p.productTitle,
		Version:      v.Canonical,
		Tag:          v.Tag,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (p *Publisher) prerelease(v versioning.Resolved) bool {
	switch p.cfg.Prerelease {
	case config.PrereleaseAlways:
		return true
	case config.PrereleaseNever:
		return false
	default:
		return v.IsPrerelease()
	}
}

func (p *Publisher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

// Publish creates the release record for v.Tag and uploads every artifact.
// No upload is attempted unless creation succeeded. All uploads run to
// completion; the returned error joins one *release.AssetUploadError per
// failed artifact.
func (p *Publisher) Publish(ctx context.Context, v versioning.Resolved, artifacts []release.Artifact) (*Outcome, error) {
	titleTmpl := p.cfg.Title
	if titleTmpl == "" {
		titleTmpl = DefaultTitle
	}
	title, err := p.render("title", titleTmpl, v)
	if err != nil {
		return &Outcome{}, &release.ReleaseCreateError{Tag: v.Tag, Err: err}
	}
	body := p.notes
	if body == "" {
		if body, err = p.render("body", p.body, v); err != nil {
			return &Outcome{}, &release.ReleaseCreateError{Tag: v.Tag, Err: err}
		}
	}

	cctx, cancel := p.callContext(ctx)
	rec, err := p.client.CreateRelease(cctx, forge.CreateReleaseRequest{
		Tag:        v.Tag,
		Title:      title,
		Body:       body,
		Draft:      p.draft,
		Prerelease: p.prerelease(v),
	})
	cancel()
	if err != nil {
		slog.Error("Release creation failed", logfields.Tag(v.Tag), logfields.Error(err))
		return &Outcome{}, &release.ReleaseCreateError{Tag: v.Tag, Err: err}
	}
	slog.Info("Release created", logfields.Tag(v.Tag), logfields.URL(rec.HTMLURL), slog.Bool("draft", rec.Draft))

	out := &Outcome{Record: rec}
	items, errs := p.uploadAll(ctx, rec, artifacts)
	out.Items = items
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

func (p *Publisher) uploadAll(ctx context.Context, rec *release.Record, artifacts []release.Artifact) ([]release.ItemOutcome, []error) {
	if len(artifacts) == 0 {
		return nil, nil
	}
	concurrency := p.concurrency
	if concurrency <= 0 || concurrency > len(artifacts) {
		concurrency = len(artifacts)
	}

	items := make([]release.ItemOutcome, len(artifacts))
	errs := make([]error, len(artifacts))
	tasks := make(chan int)
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for range concurrency {
		go func() {
			defer wg.Done()
			for idx := range tasks {
				items[idx], errs[idx] = p.uploadOne(ctx, rec, artifacts[idx])
				if p.onItem != nil {
					p.onItem(items[idx])
				}
			}
		}()
	}
	for i := range artifacts {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, failed
}

func (p *Publisher) uploadOne(ctx context.Context, rec *release.Record, a release.Artifact) (release.ItemOutcome, error) {
	contentType := a.ContentType
	if contentType == "" {
		contentType = release.ContentTypeFor(a.Name)
	}
	item := release.ItemOutcome{Stage: release.StagePublishingRelease, Kind: release.ItemAsset, Name: a.Name}

	start := time.Now()
	attempts, err := p.policy.Do(ctx, func(err error) bool { return !forge.IsPermanent(err) }, func(attempt int) error {
		if attempt > 1 {
			p.recorder.IncAssetUploadRetry()
			slog.Warn("Retrying asset upload", logfields.Artifact(a.Name), logfields.Attempt(attempt))
		}
		cctx, cancel := p.callContext(ctx)
		defer cancel()
		return p.client.UploadAsset(cctx, rec, a.Path, a.Name, contentType)
	})
	item.Attempts = attempts
	p.recorder.IncAssetUploadResult(metrics.ResultFor(err == nil))

	if err != nil {
		item.Status = release.StatusFailed
		uerr := &release.AssetUploadError{Artifact: a.Name, Attempts: attempts, Err: err}
		item.Error = uerr.Error()
		slog.Error("Asset upload failed", logfields.Artifact(a.Name), logfields.Attempt(attempts), logfields.Error(err))
		return item, uerr
	}
	item.Status = release.StatusSucceeded
	slog.Info("Asset uploaded", logfields.Artifact(a.Name), logfields.Attempt(attempts), logfields.Duration(time.Since(start)))
	return item, nil
}
