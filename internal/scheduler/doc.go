// Package scheduler runs nightly prerelease builds on a cron schedule. The
// daemon reloads releaser.yaml when it changes and exposes the run metrics
// over HTTP for Prometheus to scrape.
package scheduler
