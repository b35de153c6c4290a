package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a task status change would move
// backwards or skip a required state.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is executing on a backend.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Pending may fail directly when the backend is missing or unavailable.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusFailed
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// Task represents a unit of work delegated to a single backend.
type Task struct {
	// ID is unique within a plan.
	ID string `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Agent is the backend that executes the task.
	Agent AgentType `json:"agent" yaml:"agent"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// Dependencies lists task IDs that must complete before this task.
	// IDs not present in the plan are never satisfied.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	// Workspace is the directory the backend operates in.
	Workspace string `json:"workspace" yaml:"workspace"`
	// Description is the instruction handed to the backend.
	Description string `json:"description" yaml:"description"`
	// InputContext holds free-form notes about the task's inputs.
	InputContext []string `json:"inputContext" yaml:"inputContext"`
	// ExpectedOutput holds free-form notes about the desired result.
	ExpectedOutput []string `json:"expectedOutput" yaml:"expectedOutput"`
}

// Transition moves the task to next, rejecting backwards or skipping moves.
func (t *Task) Transition(next TaskStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("task %s: %s -> %s: %w", t.ID, t.Status, next, ErrInvalidTransition)
	}
	t.Status = next
	return nil
}

// Plan is an ordered set of tasks produced for one run. The task set does
// not change after the plan is built; statuses are updated in place.
type Plan struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Tasks     []*Task   `json:"tasks"`
}

// TaskIDs returns the ids of the plan's tasks in order.
func (p *Plan) TaskIDs() []string {
	ids := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// TaskResult is the outcome of executing one task.
type TaskResult struct {
	// ID matches the task's ID.
	ID string `json:"id"`
	// Status is completed or failed.
	Status TaskStatus `json:"status"`
	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`
	// Agent is the backend that produced the result.
	Agent AgentType `json:"agent"`
	// FilesModified lists paths the backend wrote.
	FilesModified []string `json:"filesModified"`
	// Summary is a short human-readable outcome.
	Summary string `json:"summary"`
	// HandoffNotes are notes for dependent tasks.
	HandoffNotes []string `json:"handoffNotes"`
	// Errors lists error messages; empty on success.
	Errors []string `json:"errors"`
}

// FailedResult builds a failed result for task carrying a single error.
func FailedResult(task *Task, summary, errMsg string, d time.Duration) *TaskResult {
	return &TaskResult{
		ID:       task.ID,
		Status:   TaskStatusFailed,
		Duration: d,
		Agent:    task.Agent,
		Summary:  summary,
		Errors:   []string{errMsg},
	}
}
