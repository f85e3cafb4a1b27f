package config

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier runs domain appliers in order.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier returns the applier chain used by Load.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{appliers: []DefaultApplier{
		&ProductDefaultApplier{},
		&BuildDefaultApplier{},
		&GitDefaultApplier{},
		&ReleaseDefaultApplier{},
		&TargetDefaultApplier{},
		&RuntimeDefaultApplier{},
	}}
}

func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, a := range c.appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ProductDefaultApplier derives the display title from the product name.
type ProductDefaultApplier struct{}

func (p *ProductDefaultApplier) Domain() string { return "product" }

func (p *ProductDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Product.Title == "" && cfg.Product.Name != "" {
		words := strings.NewReplacer("-", " ", "_", " ").Replace(cfg.Product.Name)
		cfg.Product.Title = cases.Title(language.Und).String(words)
	}
	return nil
}

// BuildDefaultApplier handles Build configuration defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	normalizeField(toolchainKinds, &cfg.Build.Toolchain)
	if cfg.Build.Toolchain == "" {
		cfg.Build.Toolchain = ToolchainGo
	}
	if cfg.Build.Main == "" {
		cfg.Build.Main = "."
	}
	if cfg.Build.VersionPackage == "" {
		cfg.Build.VersionPackage = "main"
	}
	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = "dist"
	}
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = len(cfg.Build.Platforms)
	}
	if cfg.Build.StopOnFailure == nil {
		v := true
		cfg.Build.StopOnFailure = &v
	}
	return nil
}

// GitDefaultApplier handles VCS defaults.
type GitDefaultApplier struct{}

func (g *GitDefaultApplier) Domain() string { return "git" }

func (g *GitDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Git.RepoDir == "" {
		cfg.Git.RepoDir = "."
	}
	if cfg.Git.Remote == "" {
		cfg.Git.Remote = "origin"
	}
	if cfg.Git.Username == "" {
		cfg.Git.Username = "x-access-token"
	}
	if cfg.Git.AuthorName == "" {
		cfg.Git.AuthorName = "releaser"
	}
	if cfg.Git.AuthorEmail == "" {
		cfg.Git.AuthorEmail = "releaser@localhost.localdomain"
	}
	if cfg.Git.CommitMessage == "" {
		cfg.Git.CommitMessage = "chore(release): {{.Tag}}"
	}
	if cfg.Git.TagMessage == "" {
		cfg.Git.TagMessage = "Release {{.Tag}}"
	}
	return nil
}

// ReleaseDefaultApplier handles hosted release defaults.
type ReleaseDefaultApplier struct{}

func (r *ReleaseDefaultApplier) Domain() string { return "release" }

func (r *ReleaseDefaultApplier) ApplyDefaults(cfg *Config) error {
	rc := &cfg.Release
	normalizeField(forgeTypes, &rc.Forge)
	if rc.Forge == ForgeGitHub {
		if rc.APIURL == "" {
			rc.APIURL = "https://api.github.com"
		}
		if rc.UploadURL == "" {
			rc.UploadURL = "https://uploads.github.com"
		}
	}
	normalizeField(prereleaseModes, &rc.Prerelease)
	if rc.Prerelease == "" {
		rc.Prerelease = PrereleaseAuto
	}
	if rc.UploadConcurrency <= 0 {
		rc.UploadConcurrency = 4
	}
	if rc.Retry.Mode = NormalizeRetryBackoff(string(rc.Retry.Mode)); rc.Retry.Mode == "" {
		rc.Retry.Mode = RetryBackoffExponential
	}
	if rc.Retry.Initial <= 0 {
		rc.Retry.Initial = time.Second
	}
	if rc.Retry.Max <= 0 {
		rc.Retry.Max = 30 * time.Second
	}
	if rc.Retry.MaxRetries == 0 {
		rc.Retry.MaxRetries = 3
	}
	return nil
}

// TargetDefaultApplier fills per-target defaults.
type TargetDefaultApplier struct{}

func (t *TargetDefaultApplier) Domain() string { return "targets" }

func (t *TargetDefaultApplier) ApplyDefaults(cfg *Config) error {
	for i := range cfg.Targets {
		tc := &cfg.Targets[i]
		normalizeField(targetKinds, &tc.Kind)
		if tc.Dir == "" {
			tc.Dir = cfg.Build.OutputDir
		}
		if tc.Kind == TargetS3 && tc.Region == "" {
			tc.Region = "us-east-1"
		}
	}
	return nil
}

// RuntimeDefaultApplier covers policy, journal, notify and metrics.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	normalizeField(partialBuildPolicies, &cfg.Policy.OnPartialBuild)
	if cfg.Policy.OnPartialBuild == "" {
		cfg.Policy.OnPartialBuild = PartialBuildAbort
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = ".releaser/journal.db"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "releaser.events"
	}
	if cfg.Notify.Stream == "" {
		cfg.Notify.Stream = "RELEASER"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "releaser"
	}
	return nil
}
