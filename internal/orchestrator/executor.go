package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/internal/panicerr"
	"github.com/ShayCichocki/relay/pkg/models"
)

var (
	// ErrAdapterMissing means no backend is registered for a task's agent.
	ErrAdapterMissing = errors.New("adapter not found")
	// ErrAgentUnavailable means the backend's availability check failed.
	ErrAgentUnavailable = errors.New("agent unavailable")
)

// Executor runs a single task through its backend and always produces a
// result. Failures are captured in the result, never returned.
type Executor struct {
	bus      *EventBus
	gate     *ToolApprovalGate
	adapters AdapterLookup
	persist  Persister
	usage    UsageRecorder
	locks    *WorkspaceLocks
	logger   *DebugLogger
}

// NewExecutor creates an executor. persist, usage and gate may be nil.
// Tasks are serialized per workspace through the process-wide lock table.
func NewExecutor(bus *EventBus, adapters AdapterLookup, gate *ToolApprovalGate, persist Persister, usage UsageRecorder, logger *DebugLogger) *Executor {
	return &Executor{
		bus:      bus,
		gate:     gate,
		adapters: adapters,
		persist:  persist,
		usage:    usage,
		locks:    processLocks,
		logger:   logger,
	}
}

// Execute runs task and returns its result.
func (e *Executor) Execute(ctx context.Context, task *models.Task) *models.TaskResult {
	start := time.Now()
	e.bus.Emit(NewEvent(EventTaskStarted, TaskStarted{TaskID: task.ID, Agent: task.Agent}))
	e.logger.Log("[executor] task:started id=%s agent=%s", task.ID, task.Agent)

	result, err := e.invoke(ctx, task)
	switch {
	case errors.Is(err, ErrAdapterMissing):
		e.logger.Log("[executor] %v", err)
		return e.finish(ctx, task, models.FailedResult(task,
			"No adapter available for selected agent.",
			fmt.Sprintf("Adapter not found for %s", task.Agent),
			0))
	case errors.Is(err, ErrAgentUnavailable):
		e.logger.Log("[executor] task %s: %v", task.ID, err)
		return e.finish(ctx, task, models.FailedResult(task,
			"Selected agent is not available.",
			fmt.Sprintf("Agent %s is not available or missing credentials.", task.Agent),
			0))
	}
	return e.finish(ctx, task, normalizeResult(task, result, err, time.Since(start)))
}

// invoke resolves the backend for task, attaches the task's hooks, checks
// availability and runs it under the workspace lock. Lookup and availability
// failures wrap ErrAdapterMissing and ErrAgentUnavailable; any other error
// is the backend's own. The planning pass goes through here too.
func (e *Executor) invoke(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	adapter, ok := e.adapters.Get(task.Agent)
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrAdapterMissing, task.Agent)
	}

	e.attach(adapter, task)
	if err := e.checkAvailable(ctx, adapter); err != nil {
		return nil, err
	}

	e.setStatus(task, models.TaskStatusRunning)
	e.logger.Log("[executor] task:execute id=%s agent=%s workspace=%s", task.ID, task.Agent, task.Workspace)

	unlock := e.locks.Lock(task.Workspace)
	defer unlock()

	var result *models.TaskResult
	err := panicerr.SafeContext(func(ctx context.Context) error {
		var execErr error
		result, execErr = adapter.Execute(ctx, task)
		return execErr
	})(ctx)
	return result, err
}

// attach installs this task's stream sink and approval hook on adapter.
func (e *Executor) attach(adapter agent.Adapter, task *models.Task) {
	adapter.SetStreamSink(func(c agent.StreamChunk) {
		e.bus.Emit(NewEvent(EventAgentStream, AgentStream{
			TaskID: task.ID,
			Agent:  task.Agent,
			Text:   c.Text,
			Stage:  c.Stage,
		}))
	})
	adapter.SetApprovalHandler(func(ctx context.Context, use agent.ToolUse) bool {
		if e.gate == nil {
			return false
		}
		use.TaskID = task.ID
		use.Agent = task.Agent
		return e.gate.Request(ctx, use)
	})
}

// checkAvailable returns nil only when the adapter reports itself available.
func (e *Executor) checkAvailable(ctx context.Context, adapter agent.Adapter) error {
	var available bool
	err := panicerr.Safe(func() error {
		var availErr error
		available, availErr = adapter.IsAvailable(ctx)
		return availErr
	})()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	if !available {
		return ErrAgentUnavailable
	}
	return nil
}

// normalizeResult turns whatever the backend returned into a terminal
// result that belongs to task.
func normalizeResult(task *models.Task, result *models.TaskResult, err error, elapsed time.Duration) *models.TaskResult {
	if err != nil {
		// Recovered panics carry a stack trace after the first line.
		msg, _, _ := strings.Cut(err.Error(), "\n")
		return models.FailedResult(task, "Agent execution failed.", msg, elapsed)
	}
	if result == nil {
		return models.FailedResult(task, "Agent execution failed.", "agent returned no result", elapsed)
	}

	result.ID = task.ID
	if result.Agent == "" {
		result.Agent = task.Agent
	}
	if result.Duration == 0 {
		result.Duration = elapsed
	}
	if !result.Status.IsTerminal() {
		result.Errors = append(result.Errors, fmt.Sprintf("agent returned non-terminal status %q", result.Status))
		result.Status = models.TaskStatusFailed
	}
	if result.Status == models.TaskStatusFailed && len(result.Errors) == 0 {
		result.Errors = []string{fmt.Sprintf("Task %s failed", task.ID)}
	}
	return result
}

// finish records the result, updates the task and emits task:completed.
func (e *Executor) finish(ctx context.Context, task *models.Task, result *models.TaskResult) *models.TaskResult {
	e.setStatus(task, result.Status)

	if e.persist != nil {
		if _, err := e.persist.WriteResult(ctx, result); err != nil {
			log.Printf("[executor] WARNING: write result %s: %v", task.ID, err)
			e.logger.Log("[executor] write result %s: %v", task.ID, err)
		}
	}
	if e.usage != nil {
		if err := e.usage.RecordTask(ctx, task, result); err != nil {
			log.Printf("[executor] WARNING: record usage %s: %v", task.ID, err)
			e.logger.Log("[executor] record usage %s: %v", task.ID, err)
		}
	}

	e.logger.Log("[executor] task:completed id=%s status=%s duration=%s", task.ID, result.Status, result.Duration)
	e.bus.Emit(NewEvent(EventTaskCompleted, TaskCompleted{TaskID: task.ID, Status: result.Status}))
	return result
}

func (e *Executor) setStatus(task *models.Task, next models.TaskStatus) {
	if err := task.Transition(next); err != nil {
		e.logger.Log("[executor] %v", err)
	}
}
