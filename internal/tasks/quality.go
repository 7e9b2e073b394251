package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/loc"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
)

// TestOptions configures Test.
type TestOptions struct {
	Watch       bool
	LastFailing bool
	NoFlake     bool
	K           string
}

// Args returns the test runner arguments.
func (o TestOptions) Args() []string {
	var args []string
	if o.K != "" {
		args = append(args, "-k", o.K)
	}
	if o.Watch {
		args = append(args, "-f")
	}
	if o.LastFailing {
		args = append(args, "--lf")
	}
	return args
}

// Test lints the code base unless told not to and runs the test suite. A
// failing suite exits chore with the runner's exit code.
func Test(ctx context.Context, rt *registry.Runtime, opts TestOptions) error {
	if !opts.NoFlake {
		if err := Flake(ctx, rt); err != nil {
			return err
		}
	}

	inv := command(rt.Config.Test.Runner, opts.Args()...)
	inv.Warn = true
	res, err := rt.Run(ctx, inv)
	if err != nil {
		return err
	}
	if res.Failed() {
		rt.Println(tui.Error("test failed exiting"))
		return registry.Exit(res.ExitCode)
	}
	return nil
}

// Flake runs the linter.
func Flake(ctx context.Context, rt *registry.Runtime) error {
	inv := connectors.Invocation{Command: rt.Config.Test.Lint, Echo: true}
	if _, err := rt.Run(ctx, inv); err != nil {
		return err
	}
	rt.Println(tui.Success(fmt.Sprintf("%s passed!!!", inv.Program())))
	return nil
}

// Loc counts lines of code under the project root and prints the report.
func Loc(ctx context.Context, rt *registry.Runtime) (*loc.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report, err := loc.Count(rt.Config.Root, loc.Options{
		Pattern:  rt.Config.Loc.Pattern,
		Excludes: rt.Config.Loc.Excludes,
	})
	if err != nil {
		return nil, err
	}
	return report, report.Write(rt.Stdout)
}

// isTestFailure reports whether err is the test suite failing rather than
// chore failing to run it.
func isTestFailure(err error) bool {
	var exit *registry.ExitError
	return errors.As(err, &exit) || errors.Is(err, connectors.ErrCommandFailed)
}

func joinCommand(base string, args ...string) string {
	if len(args) == 0 {
		return base
	}
	return base + " " + shellquote.Join(args...)
}
