package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/pkg/models"
)

func toolUse() agent.ToolUse {
	return agent.ToolUse{
		TaskID:   "task-001",
		Agent:    models.AgentClaudeCode,
		ToolName: "Bash",
		Input:    map[string]any{"command": "rm -rf build"},
	}
}

func decisions(r *recorder) []string {
	var out []string
	for _, e := range r.ofType(EventToolDecision) {
		out = append(out, e.Data.(ToolDecision).Decision)
	}
	return out
}

func TestApprovalGate_Allow(t *testing.T) {
	bus := NewEventBus(nil)
	rec := record(bus)
	gate := NewToolApprovalGate(bus, time.Minute, nil)

	bus.Subscribe(EventToolRequest, func(e Event) {
		req := e.Data.(ToolApprovalRequest)
		go gate.Resolve(req.ID, true)
	})

	assert.True(t, gate.Request(context.Background(), toolUse()))
	assert.Equal(t, []string{DecisionAllow}, decisions(rec))
	assert.Empty(t, gate.Pending())

	req := rec.ofType(EventToolRequest)[0].Data.(ToolApprovalRequest)
	assert.True(t, strings.HasPrefix(req.ID, "tool-"))
	assert.Equal(t, "Bash", req.ToolName)
	assert.Equal(t, "task-001", req.TaskID)
	assert.False(t, req.CreatedAt.IsZero())
}

func TestApprovalGate_ResolveInsideListener(t *testing.T) {
	bus := NewEventBus(nil)
	gate := NewToolApprovalGate(bus, time.Minute, nil)

	bus.Subscribe(EventToolRequest, func(e Event) {
		gate.Resolve(e.Data.(ToolApprovalRequest).ID, false)
	})

	assert.False(t, gate.Request(context.Background(), toolUse()))
}

func TestApprovalGate_FirstResolutionWins(t *testing.T) {
	bus := NewEventBus(nil)
	rec := record(bus)
	gate := NewToolApprovalGate(bus, time.Minute, nil)

	done := make(chan bool)
	go func() { done <- gate.Request(context.Background(), toolUse()) }()

	require.Eventually(t, func() bool { return len(gate.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	id := gate.Pending()[0].ID

	assert.True(t, gate.Resolve(id, false))
	assert.False(t, gate.Resolve(id, true))
	assert.False(t, gate.Resolve("tool-unknown", true))

	assert.False(t, <-done)
	assert.Equal(t, []string{DecisionDeny}, decisions(rec))
}

func TestApprovalGate_Timeout(t *testing.T) {
	bus := NewEventBus(nil)
	rec := record(bus)
	gate := NewToolApprovalGate(bus, 20*time.Millisecond, nil)

	start := time.Now()
	assert.False(t, gate.Request(context.Background(), toolUse()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []string{DecisionTimeout}, decisions(rec))

	// A late resolution is ignored and emits nothing.
	req := rec.ofType(EventToolRequest)[0].Data.(ToolApprovalRequest)
	assert.False(t, gate.Resolve(req.ID, true))
	assert.Len(t, rec.ofType(EventToolDecision), 1)
}

func TestApprovalGate_ContextCancelled(t *testing.T) {
	bus := NewEventBus(nil)
	rec := record(bus)
	gate := NewToolApprovalGate(bus, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	bus.Subscribe(EventToolRequest, func(Event) { cancel() })

	assert.False(t, gate.Request(ctx, toolUse()))
	assert.Equal(t, []string{DecisionCancelled}, decisions(rec))
	assert.Empty(t, gate.Pending())
}

func TestApprovalGate_DefaultTimeout(t *testing.T) {
	gate := NewToolApprovalGate(NewEventBus(nil), 0, nil)
	assert.Equal(t, DefaultApprovalTimeout, gate.timeout)
	assert.Equal(t, 60*time.Second, DefaultApprovalTimeout)
}

func TestApprovalGate_ConcurrentRequests(t *testing.T) {
	bus := NewEventBus(nil)
	rec := record(bus)
	gate := NewToolApprovalGate(bus, time.Minute, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.Request(context.Background(), toolUse())
		}()
	}

	require.Eventually(t, func() bool { return len(gate.Pending()) == n }, time.Second, 5*time.Millisecond)
	for _, req := range gate.Pending() {
		gate.Resolve(req.ID, true)
	}
	wg.Wait()
	close(results)

	for allowed := range results {
		assert.True(t, allowed)
	}
	assert.Len(t, decisions(rec), n)
}
