package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/relay/pkg/models"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded orchestration run.
type Run struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"prompt"`
	Workspace  string     `json:"workspace"`
	Status     RunStatus  `json:"status"`
	Summary    string     `json:"summary"`
	Errors     []string   `json:"errors"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// RunTask is a task row belonging to a run.
type RunTask struct {
	RunID      string            `json:"run_id"`
	TaskID     string            `json:"task_id"`
	Position   int               `json:"position"`
	Agent      models.AgentType  `json:"agent"`
	Status     models.TaskStatus `json:"status"`
	StartedAt  *time.Time        `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at"`
}

// CreateRun inserts a run and its pending tasks in one transaction.
func (db *DB) CreateRun(ctx context.Context, r *Run, taskIDs []string) error {
	errs, err := json.Marshal(nonNil(r.Errors))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, prompt, workspace, status, summary, errors, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Prompt, r.Workspace, string(r.Status), r.Summary, string(errs), formatTime(r.StartedAt))
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		for i, id := range taskIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_tasks (run_id, task_id, position, status) VALUES (?, ?, ?, ?)
			`, r.ID, id, i, string(models.TaskStatusPending))
			if err != nil {
				return fmt.Errorf("create run task %s: %w", id, err)
			}
		}
		return nil
	})
}

// FinishRun records the terminal status of a run.
func (db *DB) FinishRun(ctx context.Context, id string, status RunStatus, summary string, errors []string, at time.Time) error {
	errs, err := json.Marshal(nonNil(errors))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = db.Exec(ctx, `
		UPDATE runs SET status = ?, summary = ?, errors = ?, finished_at = ? WHERE id = ?
	`, string(status), summary, string(errs), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// StartRunTask marks a task running on agent.
func (db *DB) StartRunTask(ctx context.Context, runID, taskID string, agent models.AgentType, at time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE run_tasks SET status = ?, agent = ?, started_at = ? WHERE run_id = ? AND task_id = ?
	`, string(models.TaskStatusRunning), string(agent), formatTime(at), runID, taskID)
	if err != nil {
		return fmt.Errorf("start run task: %w", err)
	}
	return nil
}

// FinishRunTask records a task's terminal status.
func (db *DB) FinishRunTask(ctx context.Context, runID, taskID string, status models.TaskStatus, at time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE run_tasks SET status = ?, finished_at = ? WHERE run_id = ? AND task_id = ?
	`, string(status), formatTime(at), runID, taskID)
	if err != nil {
		return fmt.Errorf("finish run task: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil, nil when absent.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRow(ctx, `
		SELECT id, prompt, workspace, status, summary, errors, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `
		SELECT id, prompt, workspace, status, summary, errors, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListRunTasks returns a run's tasks in plan order.
func (db *DB) ListRunTasks(ctx context.Context, runID string) ([]RunTask, error) {
	rows, err := db.Query(ctx, `
		SELECT run_id, task_id, position, agent, status, started_at, finished_at
		FROM run_tasks WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []RunTask
	for rows.Next() {
		var t RunTask
		var started, finished sql.NullString
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Position, &t.Agent, &t.Status, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		t.StartedAt = parseNullableTime(started)
		t.FinishedAt = parseNullableTime(finished)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var errs, started string
	var finished sql.NullString
	if err := s.Scan(&r.ID, &r.Prompt, &r.Workspace, &r.Status, &r.Summary, &errs, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	r.StartedAt, _ = parseTime(started)
	r.FinishedAt = parseNullableTime(finished)
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
