package tasks

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/toolcheck"
	"github.com/fentz26/chore/internal/tui"
)

// Tools lists the external programs the tasks run, as configured.
func Tools(rt *registry.Runtime) []toolcheck.Tool {
	cfg := rt.Config
	program := func(command string) string {
		return connectors.Invocation{Command: command}.Program()
	}
	return []toolcheck.Tool{
		{Program: "git", UsedBy: []string{"share-notebook", "update-version", "git-tag"}},
		{Program: program(cfg.Notebook.Server), UsedBy: []string{"notebook"}, Hint: "pip install notebook"},
		{Program: program(cfg.Notebook.Setup), UsedBy: []string{"notebook"}},
		{Program: program(cfg.Test.Runner), UsedBy: []string{"test", "browse-cov"}, Hint: "pip install pytest"},
		{Program: program(cfg.Test.Lint), UsedBy: []string{"flake", "test"}, Hint: "pip install flake8"},
		{Program: program(cfg.Docs.Builder), UsedBy: []string{"docs"}, Hint: "pip install sphinx"},
		{Program: program(cfg.Docs.Watcher), UsedBy: []string{"watch-docs"}, Hint: "pip install sphinx-autobuild"},
		{Program: program(cfg.Release.Build), UsedBy: []string{"publish"}},
		{Program: program(cfg.Release.Upload), UsedBy: []string{"publish"}, Hint: "pip install twine"},
	}
}

// Doctor reports which tools are installed. It exits with 1 when any is
// missing.
func Doctor(ctx context.Context, rt *registry.Runtime) error {
	statuses := toolcheck.NewDetector().Scan(ctx, Tools(rt))
	writeStatuses(rt, statuses)

	missing := toolcheck.Missing(statuses)
	if len(missing) == 0 {
		rt.Println(tui.Success("All tools found."))
		return nil
	}
	for _, s := range missing {
		if s.Hint != "" {
			rt.Printf("%s: %s\n", s.Program, tui.Muted(s.Hint))
		}
	}
	return registry.Exitf(1, "%d of %d tools missing", len(missing), len(statuses))
}

func writeStatuses(rt *registry.Runtime, statuses []toolcheck.Status) {
	w := tabwriter.NewWriter(rt.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tUSED BY\tVERSION\tSTATUS")
	for _, s := range statuses {
		status := tui.Success("found")
		if !s.Found {
			status = tui.Error("missing")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Program, strings.Join(s.UsedBy, ", "), s.Version, status)
	}
	w.Flush()
}

// Version prints the chore version and build platform.
func Version(_ context.Context, rt *registry.Runtime, version string) error {
	registry.WriteVersion(rt.Stdout, "chore", version)
	return nil
}
