package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/config"
)

const scheduledConfig = `
product:
  name: nightly-tool
build:
  platforms: [linux-amd64]
release:
  prerelease: "false"
schedule:
  cron: "%s"
  base_version: 2.0.0
`

func writeConfig(t *testing.T, path, cron string) *config.Config {
	t.Helper()
	content := []byte(fmt.Sprintf(scheduledConfig, cron))
	require.NoError(t, os.WriteFile(path, content, 0o600))
	cfg, err := config.Parse(content)
	require.NoError(t, err)
	return cfg
}

type runRecorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (r *runRecorder) run(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func TestDaemon_RunOnceUsesNightlyPrerelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	cfg := writeConfig(t, path, "0 3 * * *")
	rec := &runRecorder{}
	d, err := NewDaemon(path, cfg, rec.run, WithClock(func() time.Time {
		return time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	d.RunOnce(context.Background())

	require.Len(t, rec.jobs, 1)
	job := rec.jobs[0]
	assert.Equal(t, "2.0.0-nightly.20261018", job.Version)
	assert.Equal(t, config.PrereleaseAlways, job.Config.Release.Prerelease)
	assert.NotNil(t, job.Recorder)
	// The daemon's own configuration is untouched.
	assert.Equal(t, config.PrereleaseNever, d.Config().Release.Prerelease)
}

func TestDaemon_RequiresSchedule(t *testing.T) {
	cfg, err := config.Parse([]byte("product: {name: x}\nbuild: {platforms: [linux-amd64]}\n"))
	require.NoError(t, err)
	_, err = NewDaemon("", cfg, func(context.Context, Job) error { return nil })
	require.Error(t, err)
}

func TestDaemon_ReloadReschedules(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	cfg := writeConfig(t, path, "0 3 * * *")
	d, err := NewDaemon(path, cfg, func(context.Context, Job) error { return nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.sched.Stop(context.Background()) })

	ctx := context.Background()
	require.NoError(t, d.schedule(ctx, cfg.Schedule.Cron))
	first := d.JobID()
	require.NotEmpty(t, first)

	// Unchanged schedule keeps the job.
	require.NoError(t, d.Reload(ctx))
	assert.Equal(t, first, d.JobID())

	writeConfig(t, path, "30 4 * * *")
	require.NoError(t, d.Reload(ctx))
	assert.NotEqual(t, first, d.JobID())
	assert.Equal(t, "30 4 * * *", d.Config().Schedule.Cron)
	assert.Equal(t, 1, d.sched.JobCount())

	// An invalid cron keeps the running configuration.
	writeConfig(t, path, "not a cron")
	require.Error(t, d.Reload(ctx))
	assert.Equal(t, "30 4 * * *", d.Config().Schedule.Cron)
}

func TestConfigWatcher_TriggersReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	reloaded := make(chan struct{}, 4)
	cw, err := NewConfigWatcher(path, 20*time.Millisecond, func(context.Context) error {
		reloaded <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer func() { _ = cw.Stop() }()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("config change did not trigger a reload")
	}
}
