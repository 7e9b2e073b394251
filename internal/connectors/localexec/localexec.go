// Package localexec runs commands on the local machine.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/envscope"
)

// LocalExec implements the Connector interface for local command execution.
type LocalExec struct {
	workDir  string
	shell    []string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	echo     func(string) string
	lookPath func(string) (string, error)
}

// Option configures a LocalExec.
type Option func(*LocalExec)

// WithOutput sets the writers output is streamed to.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(l *LocalExec) {
		l.stdout = stdout
		l.stderr = stderr
	}
}

// WithInput sets the reader forwarded to the child's stdin.
func WithInput(stdin io.Reader) Option {
	return func(l *LocalExec) { l.stdin = stdin }
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *LocalExec) { l.logger = logger }
}

// WithShell sets the shell used for command lines. It is invoked as
// "<shell> -c <command>".
func WithShell(shell string) Option {
	return func(l *LocalExec) {
		if shell != "" {
			l.shell = []string{shell, "-c"}
		}
	}
}

// WithEchoFormat sets how echoed commands are rendered.
func WithEchoFormat(format func(string) string) Option {
	return func(l *LocalExec) { l.echo = format }
}

// New creates a new LocalExec connector rooted at workDir.
func New(workDir string, opts ...Option) *LocalExec {
	l := &LocalExec{
		workDir:  workDir,
		shell:    defaultShell(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		logger:   slog.Default(),
		echo:     func(s string) string { return s },
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// Available reports whether program is on PATH.
func (l *LocalExec) Available(program string) bool {
	_, err := l.lookPath(program)
	return err == nil
}

// Run executes the invocation and waits for it. A non-zero exit returns a
// *connectors.FailedError unless inv.Warn is set.
func (l *LocalExec) Run(ctx context.Context, inv connectors.Invocation) (*connectors.Result, error) {
	execCmd, err := l.command(ctx, inv)
	if err != nil {
		return nil, err
	}

	result := &connectors.Result{
		Command: inv.String(),
		Dir:     execCmd.Dir,
	}
	if inv.Echo {
		fmt.Fprintln(l.stdout, l.echo(result.Command))
	}
	l.logger.Debug("running command", "command", result.Command, "dir", execCmd.Dir, "pty", inv.PTY)

	var stdout, stderr bytes.Buffer
	out := io.Writer(&stdout)
	errOut := io.Writer(&stderr)
	if !inv.Hide {
		out = io.MultiWriter(l.stdout, &stdout)
		errOut = io.MultiWriter(l.stderr, &stderr)
	}

	result.StartedAt = time.Now().UTC()
	var runErr error
	if inv.PTY {
		runErr = l.runPTY(execCmd, out)
	} else {
		execCmd.Stdin = l.stdin
		execCmd.Stdout = out
		execCmd.Stderr = errOut
		runErr = execCmd.Run()
	}
	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.ExitCode = -1
			if ctx.Err() != nil {
				return result, fmt.Errorf("%s: %w", result.Command, connectors.ErrUserAbort)
			}
			return result, fmt.Errorf("exec error: %w", runErr)
		}
		result.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil || interrupted(execCmd.ProcessState) || (inv.PTY && result.ExitCode == 130) {
			return result, fmt.Errorf("%s: %w", result.Command, connectors.ErrUserAbort)
		}
	}

	if result.ExitCode != 0 {
		if inv.Warn {
			l.logger.Warn("command failed", "command", result.Command, "exit_code", result.ExitCode)
			return result, nil
		}
		return result, &connectors.FailedError{Result: result}
	}
	return result, nil
}

func (l *LocalExec) command(ctx context.Context, inv connectors.Invocation) (*exec.Cmd, error) {
	var execCmd *exec.Cmd
	if len(inv.Argv) > 0 {
		path, err := l.lookPath(inv.Argv[0])
		if err != nil {
			return nil, &connectors.MissingDependencyError{Tool: inv.Argv[0]}
		}
		execCmd = exec.CommandContext(ctx, path, inv.Argv[1:]...)
	} else {
		if inv.Command == "" {
			return nil, fmt.Errorf("empty command")
		}
		args := append(append([]string{}, l.shell[1:]...), inv.Command)
		execCmd = exec.CommandContext(ctx, l.shell[0], args...)
	}

	execCmd.Dir = l.workDir
	if inv.Dir != "" {
		if filepath.IsAbs(inv.Dir) || l.workDir == "" {
			execCmd.Dir = inv.Dir
		} else {
			execCmd.Dir = filepath.Join(l.workDir, inv.Dir)
		}
	}
	if len(inv.Env) > 0 {
		execCmd.Env = envscope.Overlay(os.Environ(), inv.Env)
	}
	configureCancel(execCmd)
	return execCmd, nil
}
