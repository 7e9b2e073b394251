// Package store provides SQLite-backed run history for chore.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/chore/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MaxOutput is the number of bytes of command output kept per stream.
const MaxOutput = 64 * 1024

const truncatedMarker = "\n... [truncated]"

// Store provides access to the history database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		args TEXT,
		inputs_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS command_runs (
		id TEXT PRIMARY KEY,
		task_run_id TEXT NOT NULL,
		command TEXT NOT NULL,
		dir TEXT,
		exit_code INTEGER,
		stdout TEXT,
		stderr TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		FOREIGN KEY (task_run_id) REFERENCES task_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_runs_task ON task_runs(task);
	CREATE INDEX IF NOT EXISTS idx_task_runs_started_at ON task_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_command_runs_task_run_id ON command_runs(task_run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Runs ---

// CreateTaskRun inserts a task run in the running state.
func (s *Store) CreateTaskRun(task string, args map[string]any, inputsHash string) (*models.TaskRun, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	run := &models.TaskRun{
		ID:         uuid.New().String(),
		Task:       task,
		Args:       args,
		InputsHash: inputsHash,
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err = s.db.Exec(
		`INSERT INTO task_runs (id, task, args, inputs_hash, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, string(argsJSON), run.InputsHash, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task run: %w", err)
	}
	return run, nil
}

// FinishTaskRun records the outcome of a task run.
func (s *Store) FinishTaskRun(id string, status models.RunStatus, errMsg string) error {
	res, err := s.db.Exec(
		`UPDATE task_runs SET status = ?, error = ?, ended_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update task run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task run %s not found", id)
	}
	return nil
}

// GetTaskRun retrieves a task run by ID, or nil if there is none.
func (s *Store) GetTaskRun(id string) (*models.TaskRun, error) {
	row := s.db.QueryRow(
		`SELECT id, task, args, inputs_hash, status, error, started_at, ended_at FROM task_runs WHERE id = ?`,
		id,
	)
	run, err := scanTaskRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task run: %w", err)
	}
	return run, nil
}

// ListTaskRuns returns the most recent task runs, optionally filtered by
// task name. A non-positive limit returns every run.
func (s *Store) ListTaskRuns(task string, limit int) ([]models.TaskRun, error) {
	query := `SELECT id, task, args, inputs_hash, status, error, started_at, ended_at FROM task_runs`
	var args []interface{}

	if task != "" {
		query += ` WHERE task = ?`
		args = append(args, task)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()

	var runs []models.TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRun(row scanner) (*models.TaskRun, error) {
	run := &models.TaskRun{}
	var args, errMsg sql.NullString
	var endedAt sql.NullTime

	if err := row.Scan(&run.ID, &run.Task, &args, &run.InputsHash, &run.Status, &errMsg, &run.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if args.Valid && args.String != "" {
		if err := json.Unmarshal([]byte(args.String), &run.Args); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return run, nil
}

// --- Command Runs ---

// CreateCommandRun inserts a command run under a task run.
func (s *Store) CreateCommandRun(taskRunID, command, dir string) (*models.CommandRun, error) {
	run := &models.CommandRun{
		ID:        uuid.New().String(),
		TaskRunID: taskRunID,
		Command:   command,
		Dir:       dir,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO command_runs (id, task_run_id, command, dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.TaskRunID, run.Command, run.Dir, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert command run: %w", err)
	}
	return run, nil
}

// FinishCommandRun stores the exit code and output of a command run.
// Output beyond MaxOutput bytes is truncated.
func (s *Store) FinishCommandRun(id string, exitCode int, stdout, stderr string) error {
	_, err := s.db.Exec(
		`UPDATE command_runs SET exit_code = ?, stdout = ?, stderr = ?, ended_at = ? WHERE id = ?`,
		exitCode, truncate(stdout), truncate(stderr), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update command run: %w", err)
	}
	return nil
}

// GetCommandRuns returns the command runs of a task run in execution order.
func (s *Store) GetCommandRuns(taskRunID string) ([]models.CommandRun, error) {
	rows, err := s.db.Query(
		`SELECT id, task_run_id, command, dir, exit_code, stdout, stderr, started_at, ended_at FROM command_runs WHERE task_run_id = ? ORDER BY started_at ASC`,
		taskRunID,
	)
	if err != nil {
		return nil, fmt.Errorf("query command runs: %w", err)
	}
	defer rows.Close()

	var runs []models.CommandRun
	for rows.Next() {
		var run models.CommandRun
		var dir, stdout, stderr sql.NullString
		var exitCode sql.NullInt64
		var endedAt sql.NullTime

		if err := rows.Scan(&run.ID, &run.TaskRunID, &run.Command, &dir, &exitCode, &stdout, &stderr, &run.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan command run: %w", err)
		}
		run.Dir = dir.String
		run.ExitCode = int(exitCode.Int64)
		run.Stdout = stdout.String
		run.Stderr = stderr.String
		if endedAt.Valid {
			run.EndedAt = &endedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func truncate(s string) string {
	if len(s) <= MaxOutput {
		return s
	}
	return s[:MaxOutput] + truncatedMarker
}
