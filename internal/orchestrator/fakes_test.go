package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/pkg/models"
)

// fakeAdapter is a scriptable backend for tests.
type fakeAdapter struct {
	name        models.AgentType
	available   bool
	availErr    error
	onAvailable func()
	exec        func(ctx context.Context, task *models.Task, a *fakeAdapter) (*models.TaskResult, error)

	mu       sync.Mutex
	sink     agent.StreamSink
	approval agent.ApprovalHandler
	executed []string
}

func newFakeAdapter(name models.AgentType) *fakeAdapter {
	return &fakeAdapter{name: name, available: true}
}

func (f *fakeAdapter) Name() models.AgentType { return f.name }

func (f *fakeAdapter) IsAvailable(ctx context.Context) (bool, error) {
	if f.onAvailable != nil {
		f.onAvailable()
	}
	return f.available, f.availErr
}

func (f *fakeAdapter) Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, task.ID)
	f.mu.Unlock()

	if f.exec != nil {
		return f.exec(ctx, task, f)
	}
	return &models.TaskResult{
		ID:      task.ID,
		Status:  models.TaskStatusCompleted,
		Agent:   f.name,
		Summary: "done " + task.ID,
	}, nil
}

func (f *fakeAdapter) SetStreamSink(s agent.StreamSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = s
}

func (f *fakeAdapter) SetApprovalHandler(h agent.ApprovalHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approval = h
}

func (f *fakeAdapter) stream(task *models.Task, text string) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(agent.StreamChunk{TaskID: task.ID, Agent: f.name, Text: text, Stage: agent.StageStdout})
}

func (f *fakeAdapter) ask(ctx context.Context, tool string) bool {
	f.mu.Lock()
	h := f.approval
	f.mu.Unlock()
	return h(ctx, agent.ToolUse{ToolName: tool, Input: map[string]any{"command": "ls"}})
}

func (f *fakeAdapter) executedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

// failFor makes the adapter fail the listed task ids.
func failFor(ids ...string) func(ctx context.Context, task *models.Task, a *fakeAdapter) (*models.TaskResult, error) {
	set := make(map[string]bool)
	for _, id := range ids {
		set[id] = true
	}
	return func(ctx context.Context, task *models.Task, a *fakeAdapter) (*models.TaskResult, error) {
		if set[task.ID] {
			return &models.TaskResult{
				ID:      task.ID,
				Status:  models.TaskStatusFailed,
				Summary: "failed " + task.ID,
				Errors:  []string{"error in " + task.ID},
			}, nil
		}
		return &models.TaskResult{ID: task.ID, Status: models.TaskStatusCompleted, Summary: "done " + task.ID}, nil
	}
}

var errBackend = errors.New("backend exploded")

// recorder captures every event emitted on a bus.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(bus *EventBus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// trace renders lifecycle events as "type(id)" strings, skipping streams.
func (r *recorder) trace() []string {
	var out []string
	for _, e := range r.all() {
		switch d := e.Data.(type) {
		case TaskStarted:
			out = append(out, string(e.Type)+"("+d.TaskID+")")
		case TaskCompleted:
			out = append(out, string(e.Type)+"("+d.TaskID+")")
		case AgentStream:
		default:
			out = append(out, string(e.Type))
		}
	}
	return out
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memPersister struct {
	mu      sync.Mutex
	tasks   []string
	results []string
	err     error
}

func (m *memPersister) WriteTask(ctx context.Context, t *models.Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t.ID)
	return "mem://tasks/" + t.ID, m.err
}

func (m *memPersister) WriteResult(ctx context.Context, r *models.TaskResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r.ID)
	return "mem://results/" + r.ID, m.err
}

type memUsage struct {
	mu    sync.Mutex
	count int
}

func (m *memUsage) RecordTask(ctx context.Context, t *models.Task, r *models.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return nil
}

func pending(id string, agentTag models.AgentType, deps ...string) *models.Task {
	if deps == nil {
		deps = []string{}
	}
	return &models.Task{
		ID:           id,
		Title:        "Task " + id,
		Agent:        agentTag,
		Status:       models.TaskStatusPending,
		Dependencies: deps,
		Workspace:    "/tmp/ws",
		Description:  "do " + id,
	}
}
