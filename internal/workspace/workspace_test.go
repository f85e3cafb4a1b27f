package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_CreateAndCleanup(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)
	if err := mgr.Create("run-1"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	wsPath := mgr.GetPath()
	if filepath.Base(wsPath) != "releaser-run-1" {
		t.Errorf("unexpected workspace name: %s", wsPath)
	}
	if _, err := os.Stat(wsPath); err != nil {
		t.Fatalf("workspace directory does not exist: %v", err)
	}

	sub, err := mgr.CreateSubdir("linux-amd64")
	if err != nil {
		t.Fatalf("CreateSubdir() failed: %v", err)
	}
	if !strings.HasPrefix(sub, wsPath) {
		t.Errorf("subdir %s is outside workspace %s", sub, wsPath)
	}

	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after cleanup: %s", wsPath)
	}
	if mgr.GetPath() != "" {
		t.Errorf("GetPath() should be empty after cleanup")
	}
}

func TestManager_KeepSkipsCleanup(t *testing.T) {
	mgr := NewManager(t.TempDir(), true)
	if err := mgr.Create(""); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(mgr.GetPath()); err != nil {
		t.Errorf("kept workspace was removed: %v", err)
	}
}

func TestManager_SubdirBeforeCreate(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)
	if _, err := mgr.CreateSubdir("x"); err == nil {
		t.Fatal("expected error before Create()")
	}
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() on uncreated workspace failed: %v", err)
	}
}

func TestEnsureOutputDirRemovesStaleArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "tool-1.2.0-linux-amd64.tar.gz")
	other := filepath.Join(dir, "keep.txt")
	for _, p := range []string{stale, other} {
		if err := os.WriteFile(p, []byte("old"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := EnsureOutputDir(dir, []string{"tool-1.2.0-linux-amd64.tar.gz", "missing.zip"}); err != nil {
		t.Fatalf("EnsureOutputDir() failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale artifact not removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestManager_CollectHoldsOnlyGivenFiles(t *testing.T) {
	src := t.TempDir()
	var files []string
	for _, name := range []string{"tool-1.2.0-linux-amd64.tar.gz", "tool-1.2.0-checksums.txt"} {
		p := filepath.Join(src, name)
		if err := os.WriteFile(p, []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}
	if err := os.WriteFile(filepath.Join(src, "tool-1.1.0-linux-amd64.tar.gz"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(t.TempDir(), false)
	if err := mgr.Create("run-1"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer func() { _ = mgr.Cleanup() }()

	if _, err := mgr.Collect("packages", files[:1]); err != nil {
		t.Fatalf("first Collect() failed: %v", err)
	}
	dir, err := mgr.Collect("packages", files)
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := "tool-1.2.0-checksums.txt,tool-1.2.0-linux-amd64.tar.gz"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("collected %s, want %s", got, want)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tool-1.2.0-checksums.txt"))
	if err != nil || string(data) != "tool-1.2.0-checksums.txt" {
		t.Errorf("collected content = %q, %v", data, err)
	}
}

func TestManager_CreateWithRelativeBaseIsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	mgr := NewManager("work", false)
	if err := mgr.Create("run-1"); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer func() { _ = mgr.Cleanup() }()
	if !filepath.IsAbs(mgr.GetPath()) {
		t.Errorf("workspace path %s is not absolute", mgr.GetPath())
	}
}
