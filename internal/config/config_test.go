package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/release"
)

const minimalConfig = `
product:
  name: my-tool
build:
  platforms: [darwin-amd64, linux-amd64, windows/amd64]
  zip_platforms: [windows-amd64]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "My Tool", cfg.Product.Title)
	assert.Equal(t, ToolchainGo, cfg.Build.Toolchain)
	assert.Equal(t, "dist", cfg.Build.OutputDir)
	assert.Equal(t, 3, cfg.Build.Concurrency)
	require.NotNil(t, cfg.Build.StopOnFailure)
	assert.True(t, *cfg.Build.StopOnFailure)
	assert.Equal(t, "origin", cfg.Git.Remote)
	assert.Equal(t, PrereleaseAuto, cfg.Release.Prerelease)
	assert.Equal(t, RetryBackoffExponential, cfg.Release.Retry.Mode)
	assert.Equal(t, time.Second, cfg.Release.Retry.Initial)
	assert.Equal(t, 3, cfg.Release.Retry.MaxRetries)
	assert.Equal(t, PartialBuildAbort, cfg.Policy.OnPartialBuild)
	assert.True(t, cfg.Journal.IsEnabled())
	assert.False(t, cfg.Release.Enabled())

	platforms, err := cfg.Build.PlatformList()
	require.NoError(t, err)
	assert.Equal(t, []release.Platform{
		{OS: "darwin", Arch: "amd64"},
		{OS: "linux", Arch: "amd64"},
		{OS: "windows", Arch: "amd64"},
	}, platforms)
	assert.True(t, cfg.Build.IsZip(release.Platform{OS: "windows", Arch: "amd64"}))
	assert.False(t, cfg.Build.IsZip(release.Platform{OS: "linux", Arch: "amd64"}))
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("RELEASER_TEST_TOKEN", "s3cret")
	cfg, err := Parse([]byte(minimalConfig + `
release:
  forge: GitHub
  owner: acme
  repo: tool
  token: ${RELEASER_TEST_TOKEN}
  retry:
    mode: Linear
    initial: 250ms
    max: 2s
timeouts:
  publish: 90s
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Release.Token)
	assert.Equal(t, ForgeGitHub, cfg.Release.Forge)
	assert.Equal(t, "https://api.github.com", cfg.Release.APIURL)
	assert.Equal(t, RetryBackoffLinear, cfg.Release.Retry.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Release.Retry.Initial)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Publish)
}

func TestParseValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing product": `
build:
  platforms: [linux-amd64]
`,
		"no platforms": `
product: {name: x}
build: {platforms: []}
`,
		"bad platform": `
product: {name: x}
build: {platforms: [linux]}
`,
		"duplicate platform": `
product: {name: x}
build: {platforms: [linux-amd64, linux/amd64]}
`,
		"undeclared zip platform": `
product: {name: x}
build: {platforms: [linux-amd64], zip_platforms: [windows-amd64]}
`,
		"command toolchain without command": `
product: {name: x}
build: {platforms: [linux-amd64], toolchain: command}
`,
		"unknown target kind": `
product: {name: x}
build: {platforms: [linux-amd64]}
targets: [{name: a, kind: ftp}]
`,
		"duplicate target": `
product: {name: x}
build: {platforms: [linux-amd64]}
targets:
  - {name: a, kind: http, url: "https://r.example.com"}
  - {name: a, kind: http, url: "https://r.example.com"}
`,
		"s3 without bucket": `
product: {name: x}
build: {platforms: [linux-amd64]}
targets: [{name: a, kind: s3, endpoint: s3.example.com}]
`,
		"release without repo": `
product: {name: x}
build: {platforms: [linux-amd64]}
release: {forge: github, owner: acme}
`,
		"forgejo without api url": `
product: {name: x}
build: {platforms: [linux-amd64]}
release: {forge: forgejo, owner: acme, repo: tool}
`,
		"bad partial policy": `
product: {name: x}
build: {platforms: [linux-amd64]}
policy: {on_partial_build: maybe}
`,
		"schedule without base": `
product: {name: x}
build: {platforms: [linux-amd64]}
schedule: {cron: "0 3 * * *"}
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestInitWritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mytool", cfg.Product.Name)
	assert.Len(t, cfg.Targets, 2)
	assert.Equal(t, "dist/python", cfg.Targets[0].Dir)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Build)

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(".env", []byte("RELEASER_DOTENV_OWNER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RELEASER_DOTENV_OWNER") })
	require.NoError(t, os.WriteFile("releaser.yaml", []byte(minimalConfig+`
release:
  forge: github
  owner: ${RELEASER_DOTENV_OWNER}
  repo: tool
`), 0o600))

	cfg, err := Load("releaser.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Release.Owner)
}

func TestParseNormalizesEnums(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
  toolchain: " Go "
release:
  forge: GitHub
  owner: acme
  repo: tool
  prerelease: always
  retry:
    mode: Constant
targets:
  - {name: mirror, kind: HTTP, url: "https://mirror.example.com"}
policy:
  on_partial_build: DRAFT
`))
	require.NoError(t, err)
	assert.Equal(t, ToolchainGo, cfg.Build.Toolchain)
	assert.Equal(t, ForgeGitHub, cfg.Release.Forge)
	assert.Equal(t, PrereleaseAlways, cfg.Release.Prerelease)
	assert.Equal(t, RetryBackoffFixed, cfg.Release.Retry.Mode)
	assert.Equal(t, TargetHTTP, cfg.Targets[0].Kind)
	assert.Equal(t, PartialBuildDraft, cfg.Policy.OnPartialBuild)
}

func TestParseRejectsUnknownEnum(t *testing.T) {
	_, err := Parse([]byte(minimalConfig + `
release:
  forge: GitLab
  owner: acme
  repo: tool
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Forge")
}
