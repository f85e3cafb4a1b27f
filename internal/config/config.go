package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/releaser/internal/release"
)

// DefaultConfigFile is the configuration file name looked up by the CLI.
const DefaultConfigFile = "releaser.yaml"

// Config is the complete, explicit configuration of a release run. It is
// passed into the orchestrator at construction; nothing reads it globally.
type Config struct {
	Product  ProductConfig  `yaml:"product"`
	Build    BuildConfig    `yaml:"build"`
	Git      GitConfig      `yaml:"git"`
	Release  ReleaseConfig  `yaml:"release"`
	Targets  []TargetConfig `yaml:"targets" validate:"dive"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Policy   PolicyConfig   `yaml:"policy"`
	Journal  JournalConfig  `yaml:"journal"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ProductConfig names what is being released.
type ProductConfig struct {
	Name string `yaml:"name" validate:"required"`
	// Title is the human readable product name used in release titles.
	Title string `yaml:"title"`
}

// ToolchainKind selects the build toolchain implementation.
type ToolchainKind string

const (
	ToolchainGo      ToolchainKind = "go"
	ToolchainCommand ToolchainKind = "command"
)

// BuildConfig declares the platforms and how to build each one.
type BuildConfig struct {
	Toolchain ToolchainKind `yaml:"toolchain" validate:"omitempty,oneof=go command"`
	// Main is the Go main package built by the go toolchain.
	Main string `yaml:"main"`
	// VersionPackage receives Version, BuildID and BuildDate through -ldflags -X.
	VersionPackage string `yaml:"version_package"`
	// Command is the argv template used by the command toolchain.
	Command       []string          `yaml:"command"`
	Env           map[string]string `yaml:"env"`
	Platforms     []string          `yaml:"platforms" validate:"required,min=1"`
	ZipPlatforms  []string          `yaml:"zip_platforms"`
	ExtraFiles    []string          `yaml:"extra_files"`
	OutputDir     string            `yaml:"output_dir"`
	Concurrency   int               `yaml:"concurrency" validate:"min=0"`
	StopOnFailure *bool             `yaml:"stop_on_failure"`
	Checksums     bool              `yaml:"checksums"`
	KeepWorkspace bool              `yaml:"keep_workspace"`
	WorkspaceDir  string            `yaml:"workspace_dir"`
}

// PlatformList returns the parsed platform declarations.
func (b BuildConfig) PlatformList() ([]release.Platform, error) {
	seen := make(map[release.Platform]bool, len(b.Platforms))
	out := make([]release.Platform, 0, len(b.Platforms))
	for _, raw := range b.Platforms {
		p, err := release.ParsePlatform(raw)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate platform %s", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// IsZip reports whether p is packaged as a zip archive.
func (b BuildConfig) IsZip(p release.Platform) bool {
	for _, raw := range b.ZipPlatforms {
		if zp, err := release.ParsePlatform(raw); err == nil && zp == p {
			return true
		}
	}
	return false
}

// GitConfig controls the VCS tagger.
type GitConfig struct {
	RepoDir string `yaml:"repo_dir"`
	// GeneratedPaths are the globs the build may modify; only matching paths are committed.
	GeneratedPaths []string `yaml:"generated_paths"`
	// Strict fails the tagging stage when the worktree has drift outside GeneratedPaths.
	Strict      bool   `yaml:"strict"`
	Push        bool   `yaml:"push"`
	Remote      string `yaml:"remote"`
	Username    string `yaml:"username"`
	Token       string `yaml:"token"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email" validate:"omitempty,email"`
	// CommitMessage and TagMessage are text/template strings over the resolved version.
	CommitMessage string `yaml:"commit_message"`
	TagMessage    string `yaml:"tag_message"`
}

// PrereleaseMode selects how the prerelease flag is derived.
type PrereleaseMode string

const (
	PrereleaseAuto   PrereleaseMode = "auto"
	PrereleaseAlways PrereleaseMode = "true"
	PrereleaseNever  PrereleaseMode = "false"
)

// ReleaseConfig describes the hosted release service.
type ReleaseConfig struct {
	Forge             ForgeType      `yaml:"forge" validate:"omitempty,oneof=github forgejo gitea"`
	APIURL            string         `yaml:"api_url" validate:"omitempty,url"`
	UploadURL         string         `yaml:"upload_url" validate:"omitempty,url"`
	Owner             string         `yaml:"owner"`
	Repo              string         `yaml:"repo"`
	Token             string         `yaml:"token"`
	Title             string         `yaml:"title"`
	Body              string         `yaml:"body"`
	Changelog         string         `yaml:"changelog"`
	Draft             bool           `yaml:"draft"`
	Prerelease        PrereleaseMode `yaml:"prerelease" validate:"omitempty,oneof=auto true false"`
	UploadConcurrency int            `yaml:"upload_concurrency" validate:"min=0"`
	Retry             RetryConfig    `yaml:"retry"`
}

// Enabled reports whether a hosted release is configured.
func (r ReleaseConfig) Enabled() bool { return r.Forge != "" }

// RetryConfig is the raw backoff configuration for asset uploads.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries" validate:"min=0"`
}

// TargetKind selects the package registry client.
type TargetKind string

const (
	TargetCommand TargetKind = "command"
	TargetS3      TargetKind = "s3"
	TargetHTTP    TargetKind = "http"
)

// TargetConfig is one package registry destination.
type TargetConfig struct {
	Name string     `yaml:"name" validate:"required"`
	Kind TargetKind `yaml:"kind" validate:"required,oneof=command s3 http"`
	// Dir overrides the package directory handed to this target.
	Dir string `yaml:"dir"`

	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`

	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	URL      string `yaml:"url" validate:"omitempty,url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TimeoutConfig bounds external calls. Zero means no timeout.
type TimeoutConfig struct {
	Build   time.Duration `yaml:"build"`
	VCS     time.Duration `yaml:"vcs"`
	Publish time.Duration `yaml:"publish"`
}

// PartialBuildPolicy selects the behaviour when some but not all platforms build.
type PartialBuildPolicy string

const (
	PartialBuildAbort PartialBuildPolicy = "abort"
	PartialBuildDraft PartialBuildPolicy = "draft"
)

// PolicyConfig holds failure policies.
type PolicyConfig struct {
	OnPartialBuild PartialBuildPolicy `yaml:"on_partial_build" validate:"omitempty,oneof=abort draft"`
}

// JournalConfig configures the sqlite release journal.
type JournalConfig struct {
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the journal should be opened.
func (j JournalConfig) IsEnabled() bool { return j.Enabled == nil || *j.Enabled }

// NotifyConfig configures NATS release events.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// MetricsConfig configures the Prometheus endpoint of the scheduler.
type MetricsConfig struct {
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// ScheduleConfig configures nightly releases.
type ScheduleConfig struct {
	Cron        string `yaml:"cron"`
	BaseVersion string `yaml:"base_version"`
}
