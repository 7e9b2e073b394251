// Package audit records task and command runs in the history store.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/models"
	"github.com/fentz26/chore/internal/store"
)

// Recorder writes task runs and the commands they execute. Store failures
// are logged and never reach the task.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger

	mu      sync.Mutex
	current string
}

// NewRecorder creates a recorder backed by s.
func NewRecorder(s *store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger}
}

// Begin records the start of a task run and returns its id, or "" when
// the run could not be recorded.
func (r *Recorder) Begin(task string, args map[string]any) string {
	run, err := r.store.CreateTaskRun(task, args, hashInputs(map[string]any{"task": task, "args": args}))
	if err != nil {
		r.logger.Warn("recording task run failed", "task", task, "error", err)
		return ""
	}

	r.mu.Lock()
	r.current = run.ID
	r.mu.Unlock()
	return run.ID
}

// Finish records the outcome of the task run started by Begin.
func (r *Recorder) Finish(id string, runErr error) {
	r.mu.Lock()
	if r.current == id {
		r.current = ""
	}
	r.mu.Unlock()

	if id == "" {
		return
	}
	status, msg := outcome(runErr)
	if err := r.store.FinishTaskRun(id, status, msg); err != nil {
		r.logger.Warn("recording task outcome failed", "run", id, "error", err)
	}
}

// Wrap returns a connector that records every command under the current
// task run.
func (r *Recorder) Wrap(conn connectors.Connector) connectors.Connector {
	return &recordingConnector{Connector: conn, recorder: r}
}

func (r *Recorder) currentRun() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

type recordingConnector struct {
	connectors.Connector
	recorder *Recorder
}

func (c *recordingConnector) Run(ctx context.Context, inv connectors.Invocation) (*connectors.Result, error) {
	runID := c.recorder.currentRun()
	if runID == "" {
		return c.Connector.Run(ctx, inv)
	}

	cmd, err := c.recorder.store.CreateCommandRun(runID, inv.String(), inv.Dir)
	if err != nil {
		c.recorder.logger.Warn("recording command failed", "command", inv.String(), "error", err)
		return c.Connector.Run(ctx, inv)
	}

	res, runErr := c.Connector.Run(ctx, inv)
	exitCode, stdout, stderr := -1, "", ""
	if res != nil {
		exitCode, stdout, stderr = res.ExitCode, res.Stdout, res.Stderr
	}
	if err := c.recorder.store.FinishCommandRun(cmd.ID, exitCode, stdout, stderr); err != nil {
		c.recorder.logger.Warn("recording command result failed", "command", inv.String(), "error", err)
	}
	return res, runErr
}

func outcome(err error) (models.RunStatus, string) {
	switch {
	case err == nil:
		return models.RunStatusSucceeded, ""
	case errors.Is(err, connectors.ErrUserAbort):
		return models.RunStatusAborted, err.Error()
	default:
		return models.RunStatusFailed, err.Error()
	}
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
