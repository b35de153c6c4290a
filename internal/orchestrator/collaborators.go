package orchestrator

import (
	"context"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/pkg/models"
)

// Persister writes task and result records somewhere durable and returns
// where they went.
type Persister interface {
	WriteTask(ctx context.Context, task *models.Task) (string, error)
	WriteResult(ctx context.Context, result *models.TaskResult) (string, error)
}

// UsageRecorder accounts for the work done by each executed task.
type UsageRecorder interface {
	RecordTask(ctx context.Context, task *models.Task, result *models.TaskResult) error
}

// AdapterLookup resolves an agent tag to its backend.
type AdapterLookup interface {
	Get(tag models.AgentType) (agent.Adapter, bool)
}

var _ AdapterLookup = (*agent.Registry)(nil)
