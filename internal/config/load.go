package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, expands, defaults and validates a configuration file.
// .env and .env.local are loaded first so their values are available to
// ${VAR} references in the file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		slog.Warn("Could not load environment file", slog.String("error", err.Error()))
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML content.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	return NewDefaultApplier().ApplyDefaults(cfg)
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const exampleConfig = `# releaser configuration
product:
  name: mytool
  title: My Tool

build:
  toolchain: go
  main: ./cmd/mytool
  version_package: main
  platforms: [darwin-amd64, linux-amd64, windows-amd64]
  zip_platforms: [windows-amd64]
  extra_files: [LICENSE, README.md]
  # Never committed and never counted as worktree drift.
  output_dir: dist

git:
  generated_paths: [CHANGELOG.md, "docs/generated/**"]
  push: true
  remote: origin
  token: ${GIT_TOKEN}
  author_name: Release Bot
  author_email: release-bot@example.com

release:
  forge: github
  owner: your-org
  repo: mytool
  token: ${GITHUB_TOKEN}
  changelog: CHANGELOG.md
  draft: false
  prerelease: auto
  upload_concurrency: 4
  retry:
    mode: exponential
    initial: 1s
    max: 30s
    max_retries: 3

targets:
  - name: pypi
    kind: command
    dir: dist/python
    command: [twine, upload, --non-interactive, "{{.Dir}}/*"]
    env:
      TWINE_USERNAME: __token__
      TWINE_PASSWORD: ${PYPI_TOKEN}
  - name: mirror
    kind: s3
    endpoint: s3.example.com
    bucket: releases
    prefix: mytool
    access_key: ${S3_ACCESS_KEY}
    secret_key: ${S3_SECRET_KEY}
    use_ssl: true

timeouts:
  build: 10m
  vcs: 2m
  publish: 5m

policy:
  on_partial_build: abort

journal:
  path: .releaser/journal.db

notify:
  nats_url: ""
  subject: releaser.events

metrics:
  listen: ":9464"

schedule:
  cron: "0 3 * * *"
  base_version: 1.3.0
`
