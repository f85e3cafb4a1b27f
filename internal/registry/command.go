package registry

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/releaser/internal/build"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// CommandTarget runs an uploader such as `twine upload` or `anaconda upload`.
// Arguments are templates over Vars plus {{.Dir}}; arguments containing glob
// metacharacters are expanded after rendering.
type CommandTarget struct {
	name string
	args []string
	env  map[string]string
	vars Vars
	run  build.Runner
}

// NewCommandTarget creates a command target. A nil run uses build.ExecRunner.
func NewCommandTarget(name string, args []string, env map[string]string, vars Vars, run build.Runner) *CommandTarget {
	if run == nil {
		run = build.ExecRunner
	}
	return &CommandTarget{name: name, args: args, env: env, vars: vars, run: run}
}

func (t *CommandTarget) Name() string { return t.name }

type commandVars struct {
	Vars
	Dir string
}

// Args renders and expands the command line for dir.
func (t *CommandTarget) Args(dir string) ([]string, error) {
	if len(t.args) == 0 {
		return nil, errors.ConfigError("command target has no command").WithContext("target", t.name).Build()
	}
	data := commandVars{Vars: t.vars, Dir: dir}
	var out []string
	for i, raw := range t.args {
		tmpl, err := template.New("arg").Option("missingkey=error").Parse(raw)
		if err != nil {
			return nil, errors.ConfigError("invalid command template").
				WithCause(err).
				WithContext("target", t.name).
				WithContext("arg", raw).
				Build()
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, errors.ConfigError("failed to render command template").
				WithCause(err).
				WithContext("target", t.name).
				WithContext("arg", raw).
				Build()
		}
		arg := buf.String()
		if i == 0 || !strings.ContainsAny(arg, "*?[") {
			out = append(out, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, errors.ConfigError("invalid glob in command").WithCause(err).WithContext("arg", arg).Build()
		}
		if len(matches) == 0 {
			return nil, errors.ValidationError("command glob matched no files").
				WithContext("target", t.name).
				WithContext("pattern", arg).
				Build()
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// Publish implements Target.
func (t *CommandTarget) Publish(ctx context.Context, dir string) error {
	if _, err := listFiles(dir); err != nil {
		return err
	}
	args, err := t.Args(dir)
	if err != nil {
		return err
	}
	env := make([]string, 0, len(t.env))
	for k, v := range t.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	if err := t.run(ctx, dir, env, args[0], args[1:]...); err != nil {
		return errors.RegistryError("uploader command failed").
			WithCause(err).
			WithContext("target", t.name).
			WithContext("command", args[0]).
			Build()
	}
	return nil
}
