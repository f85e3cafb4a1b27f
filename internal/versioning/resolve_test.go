package versioning

import (
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/release"
)

func TestResolveValid(t *testing.T) {
	cases := []struct {
		in        string
		canonical string
	}{
		{"1.2.0", "1.2.0"},
		{"v1.2.0", "1.2.0"},
		{"V1.2.0", "1.2.0"},
		{"  1.2.0\n", "1.2.0"},
		{"1.2.0-rc.1", "1.2.0-rc.1"},
		{"1.2.0+build_7", "1.2.0+build_7"},
		{"2024.10", "2024.10"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Resolve(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.canonical, got.Canonical)
			assert.Equal(t, "v"+tc.canonical, got.Tag)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	a, err := Resolve("1.2.0")
	require.NoError(t, err)
	b, err := Resolve("v1.2.0")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolveInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "v", "1.2 .0", "1.2.0/evil", "1..2", "1.2.", "1.2.lock", "-1.2", ".1", "1.2~3", "1:2", "1.2*", "ü1"} {
		t.Run(in, func(t *testing.T) {
			_, err := Resolve(in)
			require.Error(t, err)
			var ive *release.InvalidVersionError
			assert.True(t, errors.As(err, &ive), "want InvalidVersionError, got %T", err)
		})
	}
}

func TestIsPrerelease(t *testing.T) {
	assert.False(t, Resolved{Canonical: "1.2.0"}.IsPrerelease())
	assert.True(t, Resolved{Canonical: "1.2.0-rc.1"}.IsPrerelease())
	assert.False(t, Resolved{Canonical: "1.2.0+build-5"}.IsPrerelease())
	assert.True(t, Resolved{Canonical: "1.3.0-nightly.20261018"}.IsPrerelease())
}

func TestArtifactName(t *testing.T) {
	p := release.Platform{OS: "linux", Arch: "amd64"}
	assert.Equal(t, "product-1.2.0-linux-amd64.tar.gz", ArtifactName("product", "1.2.0", p, "tar.gz"))
	assert.Equal(t, "product-1.2.0-linux-amd64.zip", ArtifactName("product", "1.2.0", p, ".zip"))
}

func TestStampFallsBackToTimestamp(t *testing.T) {
	fixed := time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)
	r := Stamper{RepoDir: t.TempDir(), Now: func() time.Time { return fixed }}.Stamp(Resolved{Canonical: "1.2.0", Tag: "v1.2.0"})
	assert.Equal(t, "20261018T123000Z", r.BuildID)
	assert.Equal(t, fixed, r.BuildDate)
}

func TestStampUsesHeadHash(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	r := Stamper{RepoDir: dir}.Stamp(Resolved{Canonical: "1.2.0"})
	assert.Equal(t, hash.String()[:12], r.BuildID)
}
