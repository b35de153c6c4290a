package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/pkg/models"
)

// DefaultApprovalTimeout is how long a tool request waits before it is
// denied automatically.
const DefaultApprovalTimeout = 60 * time.Second

// ToolApprovalRequest is a pending request to run a side-effecting tool.
// It is also the payload of EventToolRequest.
type ToolApprovalRequest struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"taskId"`
	Agent     models.AgentType `json:"agent"`
	ToolName  string           `json:"toolName"`
	Input     map[string]any   `json:"input"`
	CreatedAt time.Time        `json:"createdAt"`
}

type pendingApproval struct {
	req      ToolApprovalRequest
	decision chan bool
	timer    *time.Timer
}

// ToolApprovalGate suspends backend tool calls until a decision arrives.
// Each request resolves exactly once: by Resolve, by timeout or by the
// caller's context ending. Every resolution emits one EventToolDecision.
type ToolApprovalGate struct {
	mu      sync.Mutex
	pending map[string]*pendingApproval
	bus     *EventBus
	timeout time.Duration
	logger  *DebugLogger
}

// NewToolApprovalGate creates a gate that publishes on bus. A non-positive
// timeout selects DefaultApprovalTimeout.
func NewToolApprovalGate(bus *EventBus, timeout time.Duration, logger *DebugLogger) *ToolApprovalGate {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &ToolApprovalGate{
		pending: make(map[string]*pendingApproval),
		bus:     bus,
		timeout: timeout,
		logger:  logger,
	}
}

// Request registers a pending approval, emits EventToolRequest and blocks
// until the request is resolved. It returns true only on an explicit allow.
func (g *ToolApprovalGate) Request(ctx context.Context, use agent.ToolUse) bool {
	req := ToolApprovalRequest{
		ID:        "tool-" + uuid.NewString(),
		TaskID:    use.TaskID,
		Agent:     use.Agent,
		ToolName:  use.ToolName,
		Input:     use.Input,
		CreatedAt: time.Now().UTC(),
	}
	p := &pendingApproval{req: req, decision: make(chan bool, 1)}

	// The entry must exist before the request is visible so that a listener
	// may resolve it synchronously.
	g.mu.Lock()
	g.pending[req.ID] = p
	p.timer = time.AfterFunc(g.timeout, func() {
		if g.resolve(req.ID, false, DecisionTimeout) {
			g.logger.Log("[approval] %s timed out after %s", req.ID, g.timeout)
		}
	})
	g.mu.Unlock()

	g.logger.Log("[approval] request %s task=%s tool=%s", req.ID, req.TaskID, req.ToolName)
	g.bus.Emit(NewEvent(EventToolRequest, req))

	select {
	case allow := <-p.decision:
		return allow
	case <-ctx.Done():
		if g.resolve(req.ID, false, DecisionCancelled) {
			return false
		}
		// Lost the race against another resolution; honour it.
		return <-p.decision
	}
}

// Resolve settles a pending request. It returns false if the id is unknown
// or already resolved, in which case nothing is emitted.
func (g *ToolApprovalGate) Resolve(id string, allow bool) bool {
	decision := DecisionDeny
	if allow {
		decision = DecisionAllow
	}
	return g.resolve(id, allow, decision)
}

func (g *ToolApprovalGate) resolve(id string, allow bool, decision string) bool {
	g.mu.Lock()
	p, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	g.bus.Emit(NewEvent(EventToolDecision, ToolDecision{ID: id, Decision: decision}))
	p.decision <- allow
	return true
}

// Pending returns unresolved requests, oldest first.
func (g *ToolApprovalGate) Pending() []ToolApprovalRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	reqs := make([]ToolApprovalRequest, 0, len(g.pending))
	for _, p := range g.pending {
		reqs = append(reqs, p.req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs
}
