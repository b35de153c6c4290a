package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/pkg/models"
)

// RunStore handles run history persistence.
type RunStore interface {
	CreateRun(ctx context.Context, r *Run, taskIDs []string) error
	FinishRun(ctx context.Context, id string, status RunStatus, summary string, errors []string, at time.Time) error
	StartRunTask(ctx context.Context, runID, taskID string, agent models.AgentType, at time.Time) error
	FinishRunTask(ctx context.Context, runID, taskID string, status models.TaskStatus, at time.Time) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListRunTasks(ctx context.Context, runID string) ([]RunTask, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// StateStore is the full persistence surface of DB.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
}

// Compile-time verification of the implementations.
var (
	_ StateStore                 = (*DB)(nil)
	_ orchestrator.UsageRecorder = (*UsageStore)(nil)
)
