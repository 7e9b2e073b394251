package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fentz26/chore/internal/config"
	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/store"
)

// Prompter asks the user for a line of input.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// Browser opens a URL or local file for the user.
type Browser interface {
	Open(target string) error
}

// Journal records task runs.
type Journal interface {
	Begin(task string, args map[string]any) string
	Finish(id string, err error)
}

// Runtime is the process-wide handle passed to every task.
type Runtime struct {
	Config   *config.Config
	Runner   connectors.Connector
	Logger   *slog.Logger
	Prompter Prompter
	Browser  Browser
	Journal  Journal
	// History is nil when run history is disabled.
	History *store.Store
	Stdout  io.Writer
	Stderr  io.Writer
	// Echo prints every command before it runs.
	Echo bool
}

// Run executes an invocation through the runtime's connector.
func (rt *Runtime) Run(ctx context.Context, inv connectors.Invocation) (*connectors.Result, error) {
	if rt.Echo {
		inv.Echo = true
	}
	return rt.Runner.Run(ctx, inv)
}

// Shell runs a command line with default options.
func (rt *Runtime) Shell(ctx context.Context, command string) (*connectors.Result, error) {
	return rt.Run(ctx, connectors.Invocation{Command: command})
}

// Printf writes to the task output.
func (rt *Runtime) Printf(format string, args ...any) {
	fmt.Fprintf(rt.Stdout, format, args...)
}

// Println writes a line to the task output.
func (rt *Runtime) Println(args ...any) {
	fmt.Fprintln(rt.Stdout, args...)
}

// Path resolves a path against the project root.
func (rt *Runtime) Path(rel string) string {
	return rt.Config.Path(rel)
}
