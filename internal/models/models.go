// Package models defines the run history types for chore.
package models

import "time"

// RunStatus represents the outcome of a task run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

// TaskRun records one invocation of a task from the command line.
type TaskRun struct {
	ID         string         `json:"id"`
	Task       string         `json:"task"`
	Args       map[string]any `json:"args"`
	InputsHash string         `json:"inputs_hash"`
	Status     RunStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *TaskRun) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// CommandRun records one external command executed by a task run.
type CommandRun struct {
	ID        string     `json:"id"`
	TaskRunID string     `json:"task_run_id"`
	Command   string     `json:"command"`
	Dir       string     `json:"dir,omitempty"`
	ExitCode  int        `json:"exit_code"`
	Stdout    string     `json:"stdout"`
	Stderr    string     `json:"stderr"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
