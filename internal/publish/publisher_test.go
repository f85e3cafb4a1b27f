package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/retry"
	"git.home.luguber.info/inful/releaser/internal/testforge"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

func fastRetry(n int) Option {
	return WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, n))
}

func artifacts(t *testing.T, names ...string) []release.Artifact {
	t.Helper()
	dir := t.TempDir()
	out := make([]release.Artifact, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte(n), 0o600))
		out = append(out, release.Artifact{Name: n, Path: p, ContentType: release.ContentTypeFor(n)})
	}
	return out
}

func resolved(t *testing.T, raw string) versioning.Resolved {
	t.Helper()
	v, err := versioning.Resolve(raw)
	require.NoError(t, err)
	return v
}

var product = config.ProductConfig{Name: "mytool", Title: "My Tool"}

func TestPublishCreatesRecordAndUploadsAll(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	var mu sync.Mutex
	var seen []release.ItemOutcome
	p := NewPublisher(tf, config.ReleaseConfig{Prerelease: config.PrereleaseAuto, UploadConcurrency: 2}, product,
		fastRetry(2),
		WithItemObserver(func(it release.ItemOutcome) {
			mu.Lock()
			seen = append(seen, it)
			mu.Unlock()
		}))

	arts := artifacts(t, "mytool-1.2.0-darwin-amd64.tar.gz", "mytool-1.2.0-linux-amd64.tar.gz", "mytool-1.2.0-windows-amd64.zip")
	out, err := p.Publish(context.Background(), resolved(t, "1.2.0"), arts)
	require.NoError(t, err)

	require.NotNil(t, out.Record)
	assert.Equal(t, "v1.2.0", out.Record.Tag)
	assert.Equal(t, "My Tool 1.2.0", out.Record.Title)
	assert.False(t, out.Record.Prerelease)
	assert.Len(t, tf.Uploaded(), 3)
	assert.Len(t, out.Items, 3)
	assert.Len(t, seen, 3)
	for _, it := range out.Items {
		assert.Equal(t, release.StatusSucceeded, it.Status)
		assert.Equal(t, 1, it.Attempts)
	}
}

func TestPublishCreateFailureUploadsNothing(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	tf.SetCreateFailMode(testforge.FailModeAuth)
	p := NewPublisher(tf, config.ReleaseConfig{}, product, fastRetry(2))

	out, err := p.Publish(context.Background(), resolved(t, "1.2.0"), artifacts(t, "a.tar.gz"))
	require.Error(t, err)
	var createErr *release.ReleaseCreateError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, "v1.2.0", createErr.Tag)
	assert.Nil(t, out.Record)
	assert.Equal(t, 0, tf.Attempts("a.tar.gz"))
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	tf.FailUpload("a.tar.gz", testforge.FailModeNetwork, 2)
	p := NewPublisher(tf, config.ReleaseConfig{}, product, fastRetry(3))

	out, err := p.Publish(context.Background(), resolved(t, "1.2.0"), artifacts(t, "a.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, 3, tf.Attempts("a.tar.gz"))
	require.Len(t, out.Items, 1)
	assert.Equal(t, 3, out.Items[0].Attempts)
}

func TestPublishExhaustedRetriesNameTheArtifact(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	tf.FailUpload("b.zip", testforge.FailModeNetwork, -1)
	p := NewPublisher(tf, config.ReleaseConfig{}, product, fastRetry(2))

	out, err := p.Publish(context.Background(), resolved(t, "1.2.0"), artifacts(t, "a.tar.gz", "b.zip"))
	require.Error(t, err)

	var uploadErr *release.AssetUploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "b.zip", uploadErr.Artifact)
	assert.Equal(t, 3, uploadErr.Attempts)
	assert.Equal(t, 3, tf.Attempts("b.zip"))

	// the other asset still uploaded; the record stays visibly partial
	assert.Equal(t, []string{"a.tar.gz"}, tf.Uploaded())
	require.NotNil(t, out.Record)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "a.tar.gz", out.Items[0].Name)
	assert.Equal(t, release.StatusSucceeded, out.Items[0].Status)
	assert.Equal(t, release.StatusFailed, out.Items[1].Status)
}

func TestPublishPermanentFailureStopsRetrying(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	tf.FailUpload("a.tar.gz", testforge.FailModeAuth, -1)
	p := NewPublisher(tf, config.ReleaseConfig{}, product, fastRetry(5))

	_, err := p.Publish(context.Background(), resolved(t, "1.2.0"), artifacts(t, "a.tar.gz"))
	require.Error(t, err)
	assert.Equal(t, 1, tf.Attempts("a.tar.gz"))
}

func TestPublishFlagsAndNotes(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	p := NewPublisher(tf, config.ReleaseConfig{Title: "{{.Product}} {{.Tag}}", Body: "Release {{.Version}}"}, product,
		WithDraft(true), fastRetry(0))

	out, err := p.Publish(context.Background(), resolved(t, "v2.0.0-rc.1"), nil)
	require.NoError(t, err)
	assert.True(t, out.Record.Draft)
	assert.True(t, out.Record.Prerelease)
	assert.Equal(t, "mytool v2.0.0-rc.1", out.Record.Title)
	assert.Equal(t, "Release 2.0.0-rc.1", out.Record.Body)

	tf2 := testforge.NewTestForge("gh")
	p2 := NewPublisher(tf2, config.ReleaseConfig{Body: "ignored", Prerelease: config.PrereleaseNever}, product,
		WithNotes("### Added\n- {{ not a template }}"))
	out, err = p2.Publish(context.Background(), resolved(t, "2.0.0-rc.1"), nil)
	require.NoError(t, err)
	assert.False(t, out.Record.Prerelease)
	assert.Equal(t, "### Added\n- {{ not a template }}", out.Record.Body)
}

func TestPublishBadTitleTemplate(t *testing.T) {
	tf := testforge.NewTestForge("gh")
	p := NewPublisher(tf, config.ReleaseConfig{Title: "{{.Nope}}"}, product)
	_, err := p.Publish(context.Background(), resolved(t, "1.0.0"), nil)
	var createErr *release.ReleaseCreateError
	require.ErrorAs(t, err, &createErr)
	assert.Empty(t, tf.Releases())
}
