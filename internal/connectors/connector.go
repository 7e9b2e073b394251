// Package connectors defines the command execution interface for chore.
package connectors

import (
	"context"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Invocation is a request to run an external program.
type Invocation struct {
	// Command is a shell command line. Ignored when Argv is set.
	Command string
	// Argv runs a program directly, without a shell.
	Argv []string
	// Dir is the working directory; empty means the connector's default.
	Dir string
	// Env overrides variables of the inherited environment for the child only.
	Env map[string]string

	// Echo prints the command before running it.
	Echo bool
	// PTY attaches the child to a pseudo-terminal.
	PTY bool
	// Warn turns a non-zero exit into a logged warning instead of an error.
	Warn bool
	// Hide captures output without streaming it.
	Hide bool
}

// String renders the invocation as a shell command line.
func (inv Invocation) String() string {
	if len(inv.Argv) > 0 {
		return shellquote.Join(inv.Argv...)
	}
	return inv.Command
}

// Program returns the executable the invocation starts, or the first word
// of the shell command line.
func (inv Invocation) Program() string {
	if len(inv.Argv) > 0 {
		return inv.Argv[0]
	}
	words, err := shellquote.Split(inv.Command)
	if err != nil || len(words) == 0 {
		return strings.TrimSpace(inv.Command)
	}
	return words[0]
}

// Result holds the outcome of a command execution.
type Result struct {
	Command   string        `json:"command"`
	Dir       string        `json:"dir,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the command exited non-zero.
func (r *Result) Failed() bool {
	return r.ExitCode != 0
}

// Connector executes commands.
type Connector interface {
	// Name returns the connector identifier.
	Name() string

	// Run executes an invocation and waits for it to finish.
	Run(ctx context.Context, inv Invocation) (*Result, error)

	// Available reports whether program can be found.
	Available(program string) bool
}
