package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/releaser/internal/forge"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/registry"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// applyDryRun swaps every collaborator that mutates something outside the
// output directory for one that only logs.
func (o *Orchestrator) applyDryRun() {
	o.tagger = &dryRunTagger{check: o.tagger}
	if o.client != nil {
		o.client = dryRunForge{}
	}
	targets := o.targets
	o.targets = func(v versioning.Resolved) ([]registry.Binding, error) {
		bindings, err := targets(v)
		if err != nil {
			return nil, err
		}
		out := make([]registry.Binding, len(bindings))
		for i, b := range bindings {
			out[i] = registry.Binding{Target: dryRunTarget{name: b.Target.Name()}, Dir: b.Dir}
		}
		return out, nil
	}
}

// dryRunTagger still looks up existing tags so a dry run reports the
// conflict a real run would hit.
type dryRunTagger struct {
	check Tagger
}

func (t *dryRunTagger) TagExists(tag string) (bool, error) {
	return t.check.TagExists(tag)
}

func (t *dryRunTagger) StageGenerated(_ context.Context, allowedPaths []string, message string) (bool, error) {
	slog.Info("Dry run: would commit generated files", slog.Any("paths", allowedPaths), slog.String("message", message))
	return false, release.ErrNothingToCommit
}

func (t *dryRunTagger) CreateTag(_ context.Context, tag, _ string) (string, error) {
	slog.Info("Dry run: would create tag", logfields.Tag(tag))
	return "", nil
}

func (t *dryRunTagger) Push(_ context.Context, tag string, _ bool) error {
	slog.Info("Dry run: would push tag", logfields.Tag(tag))
	return nil
}

type dryRunForge struct{}

func (dryRunForge) CreateRelease(_ context.Context, req forge.CreateReleaseRequest) (*release.Record, error) {
	slog.Info("Dry run: would create release", logfields.Tag(req.Tag), slog.String("title", req.Title),
		slog.Bool("draft", req.Draft), slog.Bool("prerelease", req.Prerelease))
	return &release.Record{
		ID:         "dry-run",
		Tag:        req.Tag,
		Title:      req.Title,
		Body:       req.Body,
		Draft:      req.Draft,
		Prerelease: req.Prerelease,
	}, nil
}

func (dryRunForge) UploadAsset(_ context.Context, _ *release.Record, path, name, contentType string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("asset %s: %w", name, err)
	}
	slog.Info("Dry run: would upload asset", logfields.Artifact(name), slog.Int64("bytes", info.Size()), slog.String("content_type", contentType))
	return nil
}

type dryRunTarget struct{ name string }

func (t dryRunTarget) Name() string { return t.name }

func (t dryRunTarget) Publish(_ context.Context, dir string) error {
	slog.Info("Dry run: would publish package directory", logfields.Target(t.name), logfields.Path(dir))
	return nil
}
