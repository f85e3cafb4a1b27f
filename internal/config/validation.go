package config

import (
	"errors"
	"fmt"

	validator "gopkg.in/go-playground/validator.v9"

	"git.home.luguber.info/inful/releaser/internal/release"
)

// ValidateConfig checks struct tags first, then the cross-field rules tags
// cannot express.
func ValidateConfig(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	return newConfigurationValidator(cfg).validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateBuild(); err != nil {
		return err
	}
	if err := cv.validateRelease(); err != nil {
		return err
	}
	if err := cv.validateTargets(); err != nil {
		return err
	}
	if err := cv.validateTimeouts(); err != nil {
		return err
	}
	return cv.validateSchedule()
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build
	platforms, err := b.PlatformList()
	if err != nil {
		return fmt.Errorf("build.platforms: %w", err)
	}
	declared := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		declared[p.String()] = true
	}
	for _, raw := range b.ZipPlatforms {
		p, err := release.ParsePlatform(raw)
		if err != nil {
			return fmt.Errorf("build.zip_platforms: %w", err)
		}
		if !declared[p.String()] {
			return fmt.Errorf("build.zip_platforms: %s is not a declared platform", p)
		}
	}
	if b.Toolchain == ToolchainCommand && len(b.Command) == 0 {
		return errors.New("build.command is required for the command toolchain")
	}
	return nil
}

func (cv *configurationValidator) validateRelease() error {
	r := cv.config.Release
	if !r.Enabled() {
		return nil
	}
	if r.Owner == "" || r.Repo == "" {
		return errors.New("release.owner and release.repo are required when release.forge is set")
	}
	if r.Forge != ForgeGitHub && r.APIURL == "" {
		return fmt.Errorf("release.api_url is required for forge %s", r.Forge)
	}
	if r.Retry.Initial > r.Retry.Max {
		return fmt.Errorf("release.retry.initial (%s) exceeds release.retry.max (%s)", r.Retry.Initial, r.Retry.Max)
	}
	return nil
}

func (cv *configurationValidator) validateTargets() error {
	seen := make(map[string]bool, len(cv.config.Targets))
	for _, t := range cv.config.Targets {
		if seen[t.Name] {
			return fmt.Errorf("targets: duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		switch t.Kind {
		case TargetCommand:
			if len(t.Command) == 0 {
				return fmt.Errorf("targets.%s: command is required", t.Name)
			}
		case TargetS3:
			if t.Endpoint == "" || t.Bucket == "" {
				return fmt.Errorf("targets.%s: endpoint and bucket are required", t.Name)
			}
		case TargetHTTP:
			if t.URL == "" {
				return fmt.Errorf("targets.%s: url is required", t.Name)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateTimeouts() error {
	t := cv.config.Timeouts
	if t.Build < 0 || t.VCS < 0 || t.Publish < 0 {
		return errors.New("timeouts cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateSchedule() error {
	s := cv.config.Schedule
	if s.Cron != "" && s.BaseVersion == "" {
		return errors.New("schedule.base_version is required when schedule.cron is set")
	}
	return nil
}
