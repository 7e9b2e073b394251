package tasks

import (
	"context"

	"github.com/fentz26/chore/internal/loc"
	"github.com/fentz26/chore/internal/profiling"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/versionfile"
)

// ProfileOptions configures Profile.
type ProfileOptions struct {
	Module string
	Method string
	// Filename receives the raw pprof profile when set.
	Filename string
	Limit    int
}

// Profile runs module.method under the CPU profiler and prints the
// statistics.
func Profile(ctx context.Context, rt *registry.Runtime, opts ProfileOptions) (*profiling.Stats, error) {
	targets, err := ProfileTargets(rt)
	if err != nil {
		return nil, err
	}
	target, err := targets.Lookup(opts.Module, opts.Method)
	if err != nil {
		return nil, err
	}

	filename := opts.Filename
	if filename != "" {
		filename = rt.Path(filename)
	}
	return profiling.Run(ctx, target, profiling.Options{
		Out:      rt.Stdout,
		Filename: filename,
		Limit:    opts.Limit,
		Env:      rt.Config.Profile.Env,
	})
}

// ProfileTargets builds the target registry: the built-in Go targets plus
// every function of the configured starlark modules.
func ProfileTargets(rt *registry.Runtime) (*profiling.Registry, error) {
	targets := profiling.NewRegistry()
	cfg := rt.Config

	builtins := []struct {
		module, method string
		fn             profiling.Func
	}{
		{"loc", "count", func(context.Context) (any, error) {
			report, err := loc.Count(cfg.Root, loc.Options{Pattern: cfg.Loc.Pattern, Excludes: cfg.Loc.Excludes})
			if err != nil {
				return nil, err
			}
			return report.Total, nil
		}},
		{"version", "read", func(context.Context) (any, error) {
			return versionfile.Read(cfg.Path(cfg.Release.VersionFile))
		}},
	}
	for _, b := range builtins {
		if err := targets.Register(b.module, b.method, b.fn); err != nil {
			return nil, err
		}
	}

	for module, path := range cfg.Profile.Modules {
		if err := targets.LoadStarlark(module, cfg.Path(path), rt.Stdout); err != nil {
			return nil, err
		}
	}
	return targets, nil
}
