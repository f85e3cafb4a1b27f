package changelog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keepAChangelog = `# Changelog

All notable changes to this project will be documented in this file.

## [Unreleased]

- Nothing yet

## [1.2.0] - 2026-03-01

### Added

- Windows builds
- ` + "`--dry-run`" + ` flag

### Fixed

- Upload retries

## [1.1.0] - 2026-01-10

- First public release

[1.2.0]: https://example.com/compare/v1.1.0...v1.2.0
[1.1.0]: https://example.com/releases/v1.1.0
`

func TestSectionKeepAChangelog(t *testing.T) {
	got, err := Section([]byte(keepAChangelog), "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "### Added\n\n- Windows builds\n- `--dry-run` flag\n\n### Fixed\n\n- Upload retries", got)
}

func TestSectionLastDropsReferences(t *testing.T) {
	got, err := Section([]byte(keepAChangelog), "v1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "- First public release", got)
}

func TestSectionPlainHeadings(t *testing.T) {
	src := "## v2.0.0-rc.1 - 2026-05-05\n\nRelease candidate.\n\n## v2.0.0 (2026-05-10)\n\nFinal.\n\n```sh\nreleaser release 2.0.0\n```\n\n## v1.9.0\n\nOld.\n"

	got, err := Section([]byte(src), "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "Final.\n\n```sh\nreleaser release 2.0.0\n```", got)

	got, err = Section([]byte(src), "2.0.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, "Release candidate.", got)
}

func TestSectionBoundaries(t *testing.T) {
	src := "## 11.2.0\n\nwrong\n\n## 1.2.01\n\nwrong too\n"
	_, err := Section([]byte(src), "1.2.0")
	assert.True(t, errors.Is(err, ErrSectionNotFound))
}

func TestSectionEmpty(t *testing.T) {
	got, err := Section([]byte("## 1.0.0\n## 0.9.0\n\nold\n"), "1.0.0")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadSection(t *testing.T) {
	p := filepath.Join(t.TempDir(), "CHANGELOG.md")
	require.NoError(t, os.WriteFile(p, []byte(keepAChangelog), 0o600))
	got, err := ReadSection(p, "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "- First public release", got)

	_, err = ReadSection(filepath.Join(t.TempDir(), "missing.md"), "1.0.0")
	assert.Error(t, err)
}
