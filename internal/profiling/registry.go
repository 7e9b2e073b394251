// Package profiling runs named targets under a CPU profiler and prints
// the resulting statistics.
package profiling

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Func is a Go profile target.
type Func func(ctx context.Context) (any, error)

// Target is a profilable function addressed as module.method.
type Target struct {
	Module string
	Method string

	fn   Func
	star starlark.Callable
	out  io.Writer
}

// Name returns module.method.
func (t *Target) Name() string {
	return t.Module + "." + t.Method
}

// Starlark reports whether the target is a starlark function.
func (t *Target) Starlark() bool {
	return t.star != nil
}

// Registry resolves module.method names to targets.
type Registry struct {
	targets map[string]*Target
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]*Target)}
}

// Register adds a Go target.
func (r *Registry) Register(module, method string, fn Func) error {
	return r.add(&Target{Module: module, Method: method, fn: fn})
}

func (r *Registry) add(t *Target) error {
	if t.Module == "" || t.Method == "" {
		return fmt.Errorf("profile target needs a module and a method, got %q", t.Name())
	}
	if _, ok := r.targets[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.Name())
	}
	r.targets[t.Name()] = t
	return nil
}

// LoadStarlark executes a starlark file and registers each of its
// top-level functions under module. Scripts may call getenv(name,
// default="") and print, which writes to out.
func (r *Registry) LoadStarlark(module, path string, out io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading profile module %s: %w", module, err)
	}

	thread := newThread("load "+module, out)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, src, predeclared())
	if err != nil {
		return fmt.Errorf("loading profile module %s: %w", module, err)
	}

	for _, name := range globals.Keys() {
		fn, ok := globals[name].(*starlark.Function)
		if !ok || strings.HasPrefix(name, "_") {
			continue
		}
		if err := r.add(&Target{Module: module, Method: name, star: fn, out: out}); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds the target module.method.
func (r *Registry) Lookup(module, method string) (*Target, error) {
	t, ok := r.targets[module+"."+method]
	if !ok {
		known := r.Names()
		if len(known) == 0 {
			return nil, fmt.Errorf("%w: %s.%s (no targets registered)", ErrTargetNotFound, module, method)
		}
		return nil, fmt.Errorf("%w: %s.%s (known: %s)", ErrTargetNotFound, module, method, strings.Join(known, ", "))
	}
	return t, nil
}

// Names returns the sorted target names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newThread(name string, out io.Writer) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			if out != nil {
				fmt.Fprintln(out, msg)
			}
		},
	}
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv": starlark.NewBuiltin("getenv", getenv),
	}
}

func getenv(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, def string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(def), nil
}
