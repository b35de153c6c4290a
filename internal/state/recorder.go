package state

import (
	"context"
	"log"
	"sync"

	"github.com/ShayCichocki/relay/internal/orchestrator"
)

// Recorder writes run history from orchestrator events.
type Recorder struct {
	db        *DB
	prompt    string
	workspace string

	mu    sync.Mutex
	runID string
}

// NewRecorder creates a recorder for one run started with prompt.
func NewRecorder(db *DB, prompt, workspace string) *Recorder {
	return &Recorder{db: db, prompt: prompt, workspace: workspace}
}

// Attach subscribes to bus and returns the disposer.
func (r *Recorder) Attach(bus *orchestrator.EventBus) func() {
	return bus.SubscribeAll(r.handle)
}

// RunID returns the plan id of the recorded run, once known.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

func (r *Recorder) handle(e orchestrator.Event) {
	ctx := context.Background()
	var err error

	switch data := e.Data.(type) {
	case orchestrator.PlanCreated:
		r.mu.Lock()
		r.runID = data.PlanID
		r.mu.Unlock()
		err = r.db.CreateRun(ctx, &Run{
			ID:        data.PlanID,
			Prompt:    r.prompt,
			Workspace: r.workspace,
			Status:    RunRunning,
			StartedAt: e.Timestamp,
		}, data.TaskIDs)
	case orchestrator.TaskStarted:
		err = r.db.StartRunTask(ctx, r.RunID(), data.TaskID, data.Agent, e.Timestamp)
	case orchestrator.TaskCompleted:
		err = r.db.FinishRunTask(ctx, r.RunID(), data.TaskID, data.Status, e.Timestamp)
	case orchestrator.RunCompleted:
		err = r.db.FinishRun(ctx, data.PlanID, RunCompleted, data.Summary, nil, e.Timestamp)
	case orchestrator.RunFailed:
		err = r.db.FinishRun(ctx, data.PlanID, RunFailed, "", data.Errors, e.Timestamp)
	default:
		return
	}

	if err != nil {
		log.Printf("[state] record %s: %v", e.Type, err)
	}
}
