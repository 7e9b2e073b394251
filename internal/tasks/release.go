package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
	"github.com/fentz26/chore/internal/versionfile"
)

const versionPrompt = "What version would you like to set for the new release (please use x.x.x semantic versioning): "

// ErrEmptyVersion is returned when no version was given at the prompt.
var ErrEmptyVersion = errors.New("version cannot be empty")

// DeployOptions configures Deploy.
type DeployOptions struct {
	// Version is prompted for when empty.
	Version string
	Local   bool
}

// Deploy cleans, tests, bumps the version and tags a production release.
// Any failing stage stops the deploy; earlier stages are not rolled back.
func Deploy(ctx context.Context, rt *registry.Runtime, opts DeployOptions) error {
	step(rt, "preparing for deploy...")
	step(rt, "first let's clean everything up.")
	if err := Clean(ctx, rt); err != nil {
		return err
	}

	step(rt, "now let's make sure the tests pass")
	if err := Test(ctx, rt, TestOptions{}); err != nil {
		return err
	}

	step(rt, "next get version information")
	version, err := UpdateVersion(ctx, rt, UpdateVersionOptions{Version: opts.Version})
	if err != nil {
		return err
	}

	step(rt, "then tag the release in git")
	if err := GitTag(ctx, rt, version, "new production release "+version); err != nil {
		return err
	}
	rt.Printf("Build is now triggered for production deployment of %s, check CI for build status\n", version)

	if opts.Local {
		if err := Publish(ctx, rt, PublishOptions{}); err != nil {
			return err
		}
	}
	step(rt, "Also follow these additional instructions here")
	return nil
}

// UpdateVersionOptions configures UpdateVersion.
type UpdateVersionOptions struct {
	// Version is prompted for when empty.
	Version string
}

// UpdateVersion rewrites the version file, commits it and returns the new
// version.
func UpdateVersion(ctx context.Context, rt *registry.Runtime, opts UpdateVersionOptions) (string, error) {
	cfg := rt.Config.Release
	path := rt.Path(cfg.VersionFile)

	current, err := versionfile.Read(path)
	switch {
	case errors.Is(err, versionfile.ErrNoVersion):
		current = "unknown"
	case err != nil:
		return "", err
	}
	rt.Printf("Current version is %s\n", current)

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		answer, err := rt.Prompter.Prompt(ctx, versionPrompt)
		if err != nil {
			return "", err
		}
		version = strings.TrimSpace(answer)
	}
	if version == "" {
		return "", ErrEmptyVersion
	}

	if err := versionfile.Rewrite(path, version); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rt.Config.Root, path)
	if err != nil {
		rel = path
	}
	if _, err := rt.Run(ctx, connectors.Invocation{Argv: []string{"git", "add", rel}, Dir: rt.Config.Root}); err != nil {
		return "", err
	}
	if _, err := rt.Run(ctx, connectors.Invocation{Argv: []string{"git", "commit", "-m", cfg.CommitMessage}, Dir: rt.Config.Root}); err != nil {
		return "", err
	}

	rt.Println(tui.Success("version updated to " + version))
	return version, nil
}

// GitTag creates an annotated tag and pushes it along with the current
// branch.
func GitTag(ctx context.Context, rt *registry.Runtime, tag, msg string) error {
	for _, argv := range [][]string{
		{"git", "tag", "-a", tag, "-m", msg},
		{"git", "push", "--tags"},
		{"git", "push"},
	} {
		if _, err := rt.Run(ctx, connectors.Invocation{Argv: argv, Dir: rt.Config.Root}); err != nil {
			return fmt.Errorf("tagging %s: %w", tag, err)
		}
	}
	return nil
}

// PublishOptions configures Publish.
type PublishOptions struct {
	// Test uploads to the test package index.
	Test bool
}

// Publish cleans, builds the package and uploads it.
func Publish(ctx context.Context, rt *registry.Runtime, opts PublishOptions) error {
	if err := Clean(ctx, rt); err != nil {
		return err
	}

	cfg := rt.Config.Release
	build, upload := cfg.Build, cfg.Upload
	if opts.Test {
		build, upload = cfg.TestBuild, cfg.TestUpload
	}
	for _, cmd := range []string{build, upload} {
		if _, err := rt.Run(ctx, connectors.Invocation{Command: cmd, Dir: rt.Config.Root, Echo: true}); err != nil {
			return err
		}
	}
	return nil
}
