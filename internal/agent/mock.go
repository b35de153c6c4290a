package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/relay/pkg/models"
)

// DefaultMockDelay is how long the mock backend pretends to work.
const DefaultMockDelay = 300 * time.Millisecond

// MockAdapter is an always-available backend used for dry runs and tests.
type MockAdapter struct {
	hooks
	delay time.Duration
}

// NewMockAdapter creates a mock backend that sleeps for delay per task.
func NewMockAdapter(delay time.Duration) *MockAdapter {
	return &MockAdapter{delay: delay}
}

// Name implements Adapter.
func (m *MockAdapter) Name() models.AgentType { return models.AgentMock }

// IsAvailable implements Adapter.
func (m *MockAdapter) IsAvailable(ctx context.Context) (bool, error) { return true, nil }

// Execute implements Adapter.
func (m *MockAdapter) Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	start := time.Now()
	m.emit(task, StageStdout, fmt.Sprintf("Mock agent starting: %s", task.Title))

	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &models.TaskResult{
		ID:           task.ID,
		Status:       models.TaskStatusCompleted,
		Duration:     time.Since(start),
		Agent:        models.AgentMock,
		Summary:      fmt.Sprintf("Mock agent executed: %s", task.Title),
		HandoffNotes: []string{"Mock execution only. Replace with a real agent for actual work."},
	}, nil
}

var _ Adapter = (*MockAdapter)(nil)
