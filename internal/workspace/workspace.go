package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/releaser/internal/logfields"
)

// Manager owns the scratch directory of one run.
type Manager struct {
	baseDir string
	dir     string
	keep    bool
}

// NewManager creates a manager rooted at baseDir (os.TempDir when empty).
// When keep is true Cleanup leaves the directory in place.
func NewManager(baseDir string, keep bool) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, keep: keep}
}

// Create makes the scratch directory for runID. An empty runID falls back to
// a timestamp.
func (m *Manager) Create(runID string) error {
	if runID == "" {
		runID = time.Now().Format("20060102-150405")
	}
	// Absolute, because toolchains run with the repository as working directory.
	dir, err := filepath.Abs(filepath.Join(m.baseDir, "releaser-"+runID))
	if err != nil {
		return fmt.Errorf("failed to resolve workspace directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// GetPath returns the scratch directory, empty before Create.
func (m *Manager) GetPath() string {
	return m.dir
}

// CreateSubdir creates a subdirectory within the workspace.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}

// Collect creates a fresh subdirectory holding exactly files, hard-linked
// when possible and copied otherwise. Anything a previous Collect left under
// the same name is removed first.
func (m *Manager) Collect(name string, files []string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	dir := filepath.Join(m.dir, name)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to reset %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	for _, src := range files {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.Link(src, dst); err == nil {
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("failed to collect %s: %w", src, err)
		}
	}
	slog.Debug("Collected files", logfields.Path(dir), slog.Int("files", len(files)))
	return dir, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// Cleanup removes the scratch directory unless the manager keeps it.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.keep {
		slog.Info("Keeping workspace", logfields.Path(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// EnsureOutputDir creates dir and removes any previous file named in names,
// so a stale artifact can never stand in for a failed build.
func EnsureOutputDir(dir string, names []string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale artifact %s: %w", p, err)
		}
	}
	return nil
}
