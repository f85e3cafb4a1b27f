package build

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/release"
	"git.home.luguber.info/inful/releaser/internal/versioning"
)

// ArchiveFormat selects how a platform build is packaged.
type ArchiveFormat string

const (
	ArchiveTarGz ArchiveFormat = "tar.gz"
	ArchiveZip   ArchiveFormat = "zip"
)

// Request is one platform build.
type Request struct {
	Product  string
	Platform release.Platform
	Version  versioning.Resolved
	// WorkDir is a scratch directory private to this build.
	WorkDir string
	// Output is the artifact path the build must produce.
	Output  string
	Archive ArchiveFormat
}

// Toolchain builds and packages one platform.
type Toolchain interface {
	Build(ctx context.Context, req Request) (string, error)
}

// Runner executes a command. It exists so tests can replace process execution.
type Runner func(ctx context.Context, dir string, env []string, name string, args ...string) error

// ExecRunner runs the command with os/exec, appending env to the process
// environment. Output is logged at debug level and its tail is included in errors.
func ExecRunner(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if out.Len() > 0 {
		slog.Debug("Command output", slog.String("command", name), slog.String("output", out.String()))
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %s", name, err, tail(out.String(), 20))
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// NewToolchain returns the toolchain selected by cfg.
func NewToolchain(cfg config.BuildConfig, repoDir string, run Runner) Toolchain {
	if run == nil {
		run = ExecRunner
	}
	if cfg.Toolchain == config.ToolchainCommand {
		return &CommandToolchain{Args: cfg.Command, Env: cfg.Env, Dir: repoDir, run: run}
	}
	return &GoToolchain{
		Main:           cfg.Main,
		VersionPackage: cfg.VersionPackage,
		ExtraFiles:     cfg.ExtraFiles,
		Env:            cfg.Env,
		Dir:            repoDir,
		run:            run,
	}
}

// GoToolchain cross-compiles a Go main package and archives the binary
// together with ExtraFiles.
type GoToolchain struct {
	Main           string
	VersionPackage string
	ExtraFiles     []string
	Env            map[string]string
	Dir            string
	run            Runner
}

// LDFlags returns the linker flags that embed version metadata.
func (g *GoToolchain) LDFlags(v versioning.Resolved) string {
	pkg := g.VersionPackage
	if pkg == "" {
		pkg = "main"
	}
	return fmt.Sprintf("-s -w -X %[1]s.Version=%[2]s -X %[1]s.BuildID=%[3]s -X %[1]s.BuildDate=%[4]s",
		pkg, v.Canonical, v.BuildID, v.BuildDate.UTC().Format(time.RFC3339))
}

func (g *GoToolchain) Build(ctx context.Context, req Request) (string, error) {
	// go build runs in the repository, so -o must not be relative.
	stage, err := filepath.Abs(filepath.Join(req.WorkDir, "stage"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(stage, 0o750); err != nil {
		return "", err
	}
	bin := req.Product
	if req.Platform.OS == "windows" {
		bin += ".exe"
	}
	env := []string{"GOOS=" + req.Platform.OS, "GOARCH=" + req.Platform.Arch, "CGO_ENABLED=0"}
	env = append(env, envList(g.Env)...)
	mainPkg := g.Main
	if mainPkg == "" {
		mainPkg = "."
	}
	args := []string{"build", "-trimpath", "-o", filepath.Join(stage, bin), "-ldflags", g.LDFlags(req.Version), mainPkg}
	slog.Debug("Running go build", logfields.Platform(req.Platform.String()), slog.String("ldflags", g.LDFlags(req.Version)))
	if err := g.run(ctx, g.Dir, env, "go", args...); err != nil {
		return "", err
	}
	if info, err := os.Stat(filepath.Join(stage, bin)); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("go build produced no binary at %s", filepath.Join(stage, bin))
	}
	for _, extra := range g.ExtraFiles {
		src := extra
		if !filepath.IsAbs(src) {
			src = filepath.Join(g.Dir, extra)
		}
		if err := copyFile(src, filepath.Join(stage, filepath.Base(extra))); err != nil {
			return "", fmt.Errorf("extra file %s: %w", extra, err)
		}
	}
	mtime := req.Version.BuildDate
	if req.Archive == ArchiveZip {
		err = writeZip(req.Output, stage, mtime)
	} else {
		err = writeTarGz(req.Output, stage, mtime)
	}
	if err != nil {
		return "", fmt.Errorf("package %s: %w", filepath.Base(req.Output), err)
	}
	return req.Output, nil
}

// CommandToolchain runs a templated argv without a shell. Placeholders:
// {{.Product}} {{.Version}} {{.Tag}} {{.BuildID}} {{.BuildDate}} {{.OS}}
// {{.Arch}} {{.Output}} {{.WorkDir}}.
type CommandToolchain struct {
	Args []string
	Env  map[string]string
	Dir  string
	run  Runner
}

type commandData struct {
	Product   string
	Version   string
	Tag       string
	BuildID   string
	BuildDate string
	OS        string
	Arch      string
	Output    string
	WorkDir   string
}

func (c *CommandToolchain) Build(ctx context.Context, req Request) (string, error) {
	if len(c.Args) == 0 {
		return "", fmt.Errorf("no build command configured")
	}
	data := commandData{
		Product:   req.Product,
		Version:   req.Version.Canonical,
		Tag:       req.Version.Tag,
		BuildID:   req.Version.BuildID,
		BuildDate: req.Version.BuildDate.UTC().Format(time.RFC3339),
		OS:        req.Platform.OS,
		Arch:      req.Platform.Arch,
		Output:    req.Output,
		WorkDir:   req.WorkDir,
	}
	argv, err := renderArgs(c.Args, data)
	if err != nil {
		return "", err
	}
	env := append([]string{"GOOS=" + req.Platform.OS, "GOARCH=" + req.Platform.Arch}, envList(c.Env)...)
	if err := c.run(ctx, c.Dir, env, argv[0], argv[1:]...); err != nil {
		return "", err
	}
	return req.Output, nil
}

func renderArgs(args []string, data any) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		tmpl, err := template.New("arg").Option("missingkey=error").Parse(a)
		if err != nil {
			return nil, fmt.Errorf("parse command argument %q: %w", a, err)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			return nil, fmt.Errorf("render command argument %q: %w", a, err)
		}
		out = append(out, b.String())
	}
	return out, nil
}

func envList(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
