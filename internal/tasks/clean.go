package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
)

// Clean removes the build artifacts and the generated docs.
func Clean(ctx context.Context, rt *registry.Runtime) error {
	for _, pattern := range rt.Config.Clean.Paths {
		if err := removeGlob(rt, pattern); err != nil {
			return err
		}
	}
	if err := CleanDocs(ctx, rt); err != nil {
		return err
	}
	rt.Println(tui.Success("Cleaned up."))
	return nil
}

// CleanDocs removes the docs build directory.
func CleanDocs(_ context.Context, rt *registry.Runtime) error {
	echo(rt, "rm -rf "+rt.Config.Docs.BuildDir)
	return removeGlob(rt, rt.Config.Docs.BuildDir)
}

func removeGlob(rt *registry.Runtime, pattern string) error {
	matches, err := filepath.Glob(rt.Path(pattern))
	if err != nil {
		return fmt.Errorf("bad clean pattern %q: %w", pattern, err)
	}
	for _, path := range matches {
		rt.Logger.Debug("removing", "path", path)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}
