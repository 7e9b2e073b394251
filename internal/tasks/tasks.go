// Package tasks implements the developer tasks chore exposes. Every task
// has a Go function taking an options struct, so composite tasks call each
// other directly, and a registry definition that parses its flags.
package tasks

import (
	"context"
	"fmt"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
)

// Register adds every task to reg. version is reported by the version task.
func Register(reg *registry.Registry, version string) error {
	for _, t := range Definitions(version) {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("registering %s: %w", t.Name, err)
		}
	}
	return nil
}

// Definitions returns the task table.
func Definitions(version string) []registry.Task {
	return []registry.Task{
		{
			Name:    "notebook",
			Aliases: []string{"notebooks"},
			Help:    "Start the notebook server.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return Notebook(ctx, rt)
			},
		},
		{
			Name: "share-notebook",
			Help: "Open a shareable binder link for the notebooks on the remote repository.",
			Params: []registry.Param{
				{Name: "branch", Short: "b", Default: "master", Help: "Branch to share"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				_, err := ShareNotebook(ctx, rt, ShareNotebookOptions{Branch: args.String("branch")})
				return err
			},
		},
		{
			Name: "loc",
			Help: "Count lines of code.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				_, err := Loc(ctx, rt)
				return err
			},
		},
		{
			Name:    "test",
			Aliases: []string{"tests"},
			Help:    "Run the tests.\n\n--watch requires pytest-xdist to be installed.",
			Params: []registry.Param{
				{Name: "watch", Short: "w", Default: false, Help: "Re-run tests when files change"},
				{Name: "last_failing", Default: false, Help: "Run only the tests that failed last time"},
				{Name: "no_flake", Default: false, Help: "Skip the linter"},
				{Name: "k", Short: "k", Default: "", Help: "Only run tests matching this expression"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return Test(ctx, rt, TestOptions{
					Watch:       args.Bool("watch"),
					LastFailing: args.Bool("last_failing"),
					NoFlake:     args.Bool("no_flake"),
					K:           args.String("k"),
				})
			},
		},
		{
			Name:    "flake",
			Aliases: []string{"lint"},
			Help:    "Run the static linter on the code base.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return Flake(ctx, rt)
			},
		},
		{
			Name: "clean",
			Help: "Remove build artifacts and generated docs.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return Clean(ctx, rt)
			},
		},
		{
			Name: "deploy",
			Help: "Clean, test, bump the version and tag a production release.",
			Params: []registry.Param{
				{Name: "version", Help: "Version to release; prompted for when omitted"},
				{Name: "local", Default: false, Help: "Also build and upload the package from this machine"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return Deploy(ctx, rt, DeployOptions{
					Version: args.String("version"),
					Local:   args.Bool("local"),
				})
			},
		},
		{
			Name: "update-version",
			Help: "Set the package version and commit it.",
			Params: []registry.Param{
				{Name: "version", Help: "New version; prompted for when omitted"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				_, err := UpdateVersion(ctx, rt, UpdateVersionOptions{Version: args.String("version")})
				return err
			},
		},
		{
			Name: "git-tag",
			Help: "Create an annotated tag and push it with the current branch.",
			Params: []registry.Param{
				{Name: "tag_name", Required: true, Help: "Tag to create"},
				{Name: "msg", Required: true, Help: "Tag message"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return GitTag(ctx, rt, args.String("tag_name"), args.String("msg"))
			},
		},
		{
			Name: "clean-docs",
			Help: "Remove the generated docs.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return CleanDocs(ctx, rt)
			},
		},
		{
			Name: "browse-docs",
			Help: "Open the generated docs in a browser.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return BrowseDocs(ctx, rt)
			},
		},
		{
			Name: "docs",
			Help: "Build the docs.",
			Params: []registry.Param{
				{Name: "clean", Default: false, Help: "Remove the previous build first"},
				{Name: "browse", Default: false, Help: "Open the docs when built"},
				{Name: "watch", Default: false, Help: "Rebuild the docs when files change"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return Docs(ctx, rt, DocsOptions{
					Clean:  args.Bool("clean"),
					Browse: args.Bool("browse"),
					Watch:  args.Bool("watch"),
				})
			},
		},
		{
			Name: "watch-docs",
			Help: "Rebuild the docs whenever a file changes.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return WatchDocs(ctx, rt)
			},
		},
		{
			Name: "browse-cov",
			Help: "Run the tests and open the coverage report.",
			Params: []registry.Param{
				{Name: "norun", Default: false, Help: "Open the existing report without running the tests"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return BrowseCov(ctx, rt, BrowseCovOptions{NoRun: args.Bool("norun")})
			},
		},
		{
			Name: "publish",
			Help: "Build the package and upload it to the package index.",
			Params: []registry.Param{
				{Name: "test", Default: false, Help: "Upload to the test index"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return Publish(ctx, rt, PublishOptions{Test: args.Bool("test")})
			},
		},
		{
			Name: "profile",
			Help: "Run module.method under the profiler and print the statistics.",
			Params: []registry.Param{
				{Name: "module", Required: true, Help: "Target module"},
				{Name: "method", Required: true, Help: "Target function"},
				{Name: "filename", Short: "o", Help: "Write the raw pprof profile to this file"},
				{Name: "limit", Short: "n", Default: 25, Help: "Number of functions to list"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				_, err := Profile(ctx, rt, ProfileOptions{
					Module:   args.String("module"),
					Method:   args.String("method"),
					Filename: args.String("filename"),
					Limit:    args.Int("limit"),
				})
				return err
			},
		},
		{
			Name: "history",
			Help: "List recent task runs, or the commands of one run.",
			Params: []registry.Param{
				{Name: "limit", Short: "n", Default: 20, Help: "Number of runs to list"},
				{Name: "task", Short: "t", Default: "", Help: "Only list runs of this task"},
				{Name: "show", Short: "s", Default: "", Help: "Show the commands of this run id"},
			},
			Run: func(ctx context.Context, rt *registry.Runtime, args registry.Args) error {
				return History(ctx, rt, HistoryOptions{
					Limit: args.Int("limit"),
					Task:  args.String("task"),
					Show:  args.String("show"),
				})
			},
		},
		{
			Name: "doctor",
			Help: "Check that the tools used by the tasks are installed.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return Doctor(ctx, rt)
			},
		},
		{
			Name: "version",
			Help: "Print the chore version.",
			Run: func(ctx context.Context, rt *registry.Runtime, _ registry.Args) error {
				return Version(ctx, rt, version)
			},
		},
	}
}

// step prints a progress message between the stages of a task.
func step(rt *registry.Runtime, format string, args ...any) {
	rt.Println(tui.Heading(fmt.Sprintf(format, args...)))
}

// echo prints a command chore performs in-process.
func echo(rt *registry.Runtime, command string) {
	rt.Println(tui.Echo(command))
}

// command appends quoted arguments to a configured command line.
func command(base string, args ...string) connectors.Invocation {
	return connectors.Invocation{Command: joinCommand(base, args...)}
}
