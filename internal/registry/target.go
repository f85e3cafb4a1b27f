package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/releaser/internal/build"
	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// Target publishes a package directory to one registry.
type Target interface {
	Name() string
	Publish(ctx context.Context, dir string) error
}

// Vars are the values available to command argument templates.
type Vars struct {
	Product string
	Version string
	Tag     string
}

// New creates the Target described by tc.
func New(tc config.TargetConfig, vars Vars, run build.Runner) (Target, error) {
	switch tc.Kind {
	case config.TargetCommand:
		return NewCommandTarget(tc.Name, tc.Command, tc.Env, vars, run), nil
	case config.TargetS3:
		return NewS3Target(tc)
	case config.TargetHTTP:
		return NewHTTPTarget(tc, nil), nil
	default:
		return nil, errors.ConfigError("unsupported target kind").
			WithContext("target", tc.Name).
			WithContext("kind", tc.Kind).
			Build()
	}
}

// listFiles returns the regular files below dir as slash-separated relative
// paths in lexical order.
func listFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.FileSystemError("package directory not readable").
			WithCause(err).
			WithContext("dir", dir).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.FileSystemError("package path is not a directory").
			WithContext("dir", dir).
			Build()
	}

	var files []string
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.FileSystemError("failed to list package directory").
			WithCause(err).
			WithContext("dir", dir).
			Build()
	}
	if len(files) == 0 {
		return nil, errors.ValidationError("package directory is empty").
			WithContext("dir", dir).
			Build()
	}
	sort.Strings(files)
	return files, nil
}

// FromConfig builds a binding for every configured target.
func FromConfig(targets []config.TargetConfig, vars Vars, run build.Runner) ([]Binding, error) {
	bindings := make([]Binding, 0, len(targets))
	for _, tc := range targets {
		t, err := New(tc, vars, run)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{Target: t, Dir: tc.Dir})
	}
	return bindings, nil
}
