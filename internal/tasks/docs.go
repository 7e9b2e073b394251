package tasks

import (
	"context"
	"path/filepath"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/registry"
)

const watcherHint = "install it with: pip install sphinx-autobuild"

// DocsOptions configures Docs.
type DocsOptions struct {
	Clean  bool
	Browse bool
	Watch  bool
}

// Docs builds the documentation.
func Docs(ctx context.Context, rt *registry.Runtime, opts DocsOptions) error {
	cfg := rt.Config.Docs
	if opts.Clean {
		if err := CleanDocs(ctx, rt); err != nil {
			return err
		}
	}

	inv := command(cfg.Builder, cfg.Dir, cfg.BuildDir)
	inv.Dir = rt.Config.Root
	inv.Echo = true
	if _, err := rt.Run(ctx, inv); err != nil {
		return err
	}

	if opts.Browse {
		if err := BrowseDocs(ctx, rt); err != nil {
			return err
		}
	}
	if opts.Watch {
		return WatchDocs(ctx, rt)
	}
	return nil
}

// BrowseDocs opens the built docs in a browser.
func BrowseDocs(_ context.Context, rt *registry.Runtime) error {
	return rt.Browser.Open(filepath.Join(rt.Path(rt.Config.Docs.BuildDir), "index.html"))
}

// WatchDocs serves the docs and rebuilds them when a file changes.
func WatchDocs(ctx context.Context, rt *registry.Runtime) error {
	cfg := rt.Config.Docs
	if !rt.Runner.Available(cfg.Watcher) {
		return &connectors.MissingDependencyError{Tool: cfg.Watcher, Hint: watcherHint}
	}

	inv := command(cfg.Watcher, cfg.Dir, cfg.BuildDir, "--watch", cfg.Watch)
	inv.Dir = rt.Config.Root
	inv.Echo = true
	inv.PTY = true
	_, err := rt.Run(ctx, inv)
	return err
}

// BrowseCovOptions configures BrowseCov.
type BrowseCovOptions struct {
	// NoRun opens the existing report without running the tests.
	NoRun bool
}

// BrowseCov runs the tests and opens the coverage report. A failing test
// run still opens the report.
func BrowseCov(ctx context.Context, rt *registry.Runtime, opts BrowseCovOptions) error {
	if !opts.NoRun {
		if err := Test(ctx, rt, TestOptions{}); err != nil {
			if !isTestFailure(err) {
				return err
			}
			rt.Logger.Debug("tests failed, opening coverage anyway", "error", err)
		}
	}
	return rt.Browser.Open(rt.Path(rt.Config.Test.CoverageReport))
}
