package build

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/release"
)

type recordedRun struct {
	dir  string
	env  []string
	name string
	args []string
}

// fakeGoRunner pretends to be `go build` by writing the -o target.
func fakeGoRunner(rec *recordedRun) Runner {
	return func(_ context.Context, dir string, env []string, name string, args ...string) error {
		*rec = recordedRun{dir: dir, env: env, name: name, args: args}
		for i, a := range args {
			if a == "-o" {
				return os.WriteFile(args[i+1], []byte("binary"), 0o755)
			}
		}
		return nil
	}
}

func TestGoToolchainBuildsAndPackagesTarGz(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "LICENSE"), []byte("MIT"), 0o644))

	var rec recordedRun
	tc := NewToolchain(config.BuildConfig{Main: "./cmd/product", VersionPackage: "example.com/product/internal/version", ExtraFiles: []string{"LICENSE"}}, repo, fakeGoRunner(&rec))

	out := filepath.Join(t.TempDir(), "product-1.2.0-linux-arm64.tar.gz")
	v := resolved(t)
	got, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "linux", Arch: "arm64"},
		Version:  v,
		WorkDir:  t.TempDir(),
		Output:   out,
		Archive:  ArchiveTarGz,
	})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	assert.Equal(t, "go", rec.name)
	assert.Equal(t, repo, rec.dir)
	assert.Contains(t, rec.env, "GOOS=linux")
	assert.Contains(t, rec.env, "GOARCH=arm64")
	joined := strings.Join(rec.args, " ")
	assert.Contains(t, joined, "-X example.com/product/internal/version.Version=1.2.0")
	assert.Contains(t, joined, "-X example.com/product/internal/version.BuildID=abc123")
	assert.Contains(t, joined, "BuildDate=2026-10-18T00:00:00Z")
	assert.Equal(t, "./cmd/product", rec.args[len(rec.args)-1])

	assert.Equal(t, []string{"LICENSE", "product"}, tarEntries(t, out))
}

// goRunnerInDir resolves -o against the command directory like the go
// command does.
func goRunnerInDir(_ context.Context, dir string, _ []string, _ string, args ...string) error {
	for i, a := range args {
		if a != "-o" {
			continue
		}
		target := args[i+1]
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		return os.WriteFile(target, []byte("binary"), 0o755)
	}
	return nil
}

func TestGoToolchainRelativeWorkDirKeepsBinaryInArchive(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	require.NoError(t, os.MkdirAll("repo", 0o750))
	require.NoError(t, os.MkdirAll("dist", 0o750))

	tc := NewToolchain(config.BuildConfig{}, "repo", goRunnerInDir)
	out := filepath.Join("dist", "product-1.2.0-linux-amd64.tar.gz")
	_, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "linux", Arch: "amd64"},
		Version:  resolved(t),
		WorkDir:  filepath.Join("work", "linux-amd64"),
		Output:   out,
		Archive:  ArchiveTarGz,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"product"}, tarEntries(t, out))
	assert.NoDirExists(t, filepath.Join(root, "repo", "work"))
}

func TestGoToolchainFailsWithoutBinary(t *testing.T) {
	noop := func(context.Context, string, []string, string, ...string) error { return nil }
	tc := NewToolchain(config.BuildConfig{}, t.TempDir(), noop)
	out := filepath.Join(t.TempDir(), "product-1.2.0-linux-amd64.tar.gz")
	_, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "linux", Arch: "amd64"},
		Version:  resolved(t),
		WorkDir:  t.TempDir(),
		Output:   out,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binary")
	assert.NoFileExists(t, out)
}

func TestGoToolchainZipForWindows(t *testing.T) {
	var rec recordedRun
	tc := NewToolchain(config.BuildConfig{}, t.TempDir(), fakeGoRunner(&rec))
	out := filepath.Join(t.TempDir(), "product-1.2.0-windows-amd64.zip")
	_, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "windows", Arch: "amd64"},
		Version:  resolved(t),
		WorkDir:  t.TempDir(),
		Output:   out,
		Archive:  ArchiveZip,
	})
	require.NoError(t, err)

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "product.exe", zr.File[0].Name)
}

func TestGoToolchainMissingExtraFile(t *testing.T) {
	var rec recordedRun
	tc := NewToolchain(config.BuildConfig{ExtraFiles: []string{"NOPE.md"}}, t.TempDir(), fakeGoRunner(&rec))
	_, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "linux", Arch: "amd64"},
		Version:  resolved(t),
		WorkDir:  t.TempDir(),
		Output:   filepath.Join(t.TempDir(), "x.tar.gz"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE.md")
}

func TestCommandToolchainRendersArgs(t *testing.T) {
	var rec recordedRun
	run := func(_ context.Context, dir string, env []string, name string, args ...string) error {
		rec = recordedRun{dir: dir, env: env, name: name, args: args}
		return nil
	}
	tc := NewToolchain(config.BuildConfig{
		Toolchain: config.ToolchainCommand,
		Command:   []string{"make", "dist", "VERSION={{.Version}}", "OUT={{.Output}}", "TARGET={{.OS}}/{{.Arch}}"},
		Env:       map[string]string{"B": "2", "A": "1"},
	}, "/repo", run)

	_, err := tc.Build(context.Background(), Request{
		Product:  "product",
		Platform: release.Platform{OS: "darwin", Arch: "arm64"},
		Version:  resolved(t),
		Output:   "/out/product-1.2.0-darwin-arm64.tar.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, "make", rec.name)
	assert.Equal(t, "/repo", rec.dir)
	assert.Equal(t, []string{"dist", "VERSION=1.2.0", "OUT=/out/product-1.2.0-darwin-arm64.tar.gz", "TARGET=darwin/arm64"}, rec.args)
	assert.Equal(t, []string{"GOOS=darwin", "GOARCH=arm64", "A=1", "B=2"}, rec.env)
}

func TestCommandToolchainUnknownPlaceholder(t *testing.T) {
	tc := &CommandToolchain{Args: []string{"x", "{{.Nope}}"}, run: ExecRunner}
	_, err := tc.Build(context.Background(), Request{Version: resolved(t)})
	require.Error(t, err)
}

func TestExecRunnerReportsOutputTail(t *testing.T) {
	err := ExecRunner(context.Background(), t.TempDir(), nil, "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
}

func tarEntries(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}
