// Package agent defines the execution backend contract and the backends
// shipped with relay.
package agent

import (
	"context"
	"sync"

	"github.com/ShayCichocki/relay/pkg/models"
)

// Stream stages reported alongside chunks.
const (
	StageStdout   = "stdout"
	StageStderr   = "stderr"
	StageTool     = "tool"
	StageThinking = "thinking"
)

// StreamChunk is one piece of incremental backend output.
type StreamChunk struct {
	TaskID string
	Agent  models.AgentType
	Text   string
	Stage  string
}

// StreamSink receives stream chunks while a task executes.
type StreamSink func(StreamChunk)

// ToolUse describes a side-effecting tool call a backend wants to make.
type ToolUse struct {
	TaskID   string
	Agent    models.AgentType
	ToolName string
	Input    map[string]any
}

// ApprovalHandler decides whether a tool call may proceed. It blocks until
// the call is approved, denied or the context ends.
type ApprovalHandler func(ctx context.Context, use ToolUse) bool

// Adapter is the capability every backend implements.
type Adapter interface {
	// Name returns the agent tag this adapter serves.
	Name() models.AgentType
	// IsAvailable reports whether the backend can run right now.
	IsAvailable(ctx context.Context) (bool, error)
	// Execute runs one task and returns its result. Returned errors are
	// turned into failed results by the caller.
	Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error)
	// SetStreamSink installs the receiver for incremental output.
	SetStreamSink(sink StreamSink)
	// SetApprovalHandler installs the tool approval hook.
	SetApprovalHandler(h ApprovalHandler)
}

// hooks holds the sink and approval handler shared by every adapter.
type hooks struct {
	mu       sync.RWMutex
	sink     StreamSink
	approval ApprovalHandler
	debugLog func(format string, args ...any)
}

// SetDebugLog sets the debug logging function.
func (h *hooks) SetDebugLog(fn func(format string, args ...any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debugLog = fn
}

func (h *hooks) logf(format string, args ...any) {
	h.mu.RLock()
	fn := h.debugLog
	h.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (h *hooks) SetStreamSink(sink StreamSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

func (h *hooks) SetApprovalHandler(fn ApprovalHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.approval = fn
}

// emit forwards a chunk to the sink if one is installed.
func (h *hooks) emit(task *models.Task, stage, text string) {
	h.mu.RLock()
	sink := h.sink
	h.mu.RUnlock()

	if sink == nil || text == "" {
		return
	}
	sink(StreamChunk{TaskID: task.ID, Agent: task.Agent, Text: text, Stage: stage})
}

// approve asks the approval handler. Without a handler every tool is denied.
func (h *hooks) approve(ctx context.Context, use ToolUse) bool {
	h.mu.RLock()
	fn := h.approval
	h.mu.RUnlock()

	if fn == nil {
		return false
	}
	return fn(ctx, use)
}
