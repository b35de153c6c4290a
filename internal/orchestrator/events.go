// Package orchestrator drives a plan of tasks to completion across agents.
package orchestrator

import (
	"time"

	"github.com/ShayCichocki/relay/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanCreated is emitted once per run after the plan is built.
	EventPlanCreated EventType = "plan:created"
	// EventTaskStarted indicates a task has been picked for execution.
	EventTaskStarted EventType = "task:started"
	// EventTaskCompleted indicates a task reached a terminal status.
	EventTaskCompleted EventType = "task:completed"
	// EventRunCompleted indicates every task completed without errors.
	EventRunCompleted EventType = "run:completed"
	// EventRunFailed indicates the run stalled or collected errors.
	EventRunFailed EventType = "run:failed"
	// EventAgentStream carries incremental backend output.
	EventAgentStream EventType = "agent:stream"
	// EventToolRequest asks for approval of a side-effecting tool call.
	EventToolRequest EventType = "tool:request"
	// EventToolDecision reports how a tool request was resolved.
	EventToolDecision EventType = "tool:decision"
)

// AllEventTypes lists every event type in lifecycle order.
var AllEventTypes = []EventType{
	EventPlanCreated,
	EventTaskStarted,
	EventAgentStream,
	EventToolRequest,
	EventToolDecision,
	EventTaskCompleted,
	EventRunCompleted,
	EventRunFailed,
}

// Event is a single notification delivered through the EventBus.
// Data holds one of the payload types below, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// PlanCreated is the payload of EventPlanCreated.
type PlanCreated struct {
	PlanID  string   `json:"planId"`
	TaskIDs []string `json:"taskIds"`
}

// TaskStarted is the payload of EventTaskStarted.
type TaskStarted struct {
	TaskID string           `json:"taskId"`
	Agent  models.AgentType `json:"agent"`
}

// TaskCompleted is the payload of EventTaskCompleted.
type TaskCompleted struct {
	TaskID string            `json:"taskId"`
	Status models.TaskStatus `json:"status"`
}

// RunCompleted is the payload of EventRunCompleted.
type RunCompleted struct {
	PlanID  string `json:"planId"`
	Summary string `json:"summary"`
}

// RunFailed is the payload of EventRunFailed.
type RunFailed struct {
	PlanID string   `json:"planId"`
	Errors []string `json:"errors"`
}

// AgentStream is the payload of EventAgentStream.
type AgentStream struct {
	TaskID string           `json:"taskId"`
	Agent  models.AgentType `json:"agent"`
	Text   string           `json:"text"`
	Stage  string           `json:"stage,omitempty"`
}

// ToolDecision values.
const (
	DecisionAllow     = "allow"
	DecisionDeny      = "deny"
	DecisionTimeout   = "timeout"
	DecisionCancelled = "cancelled"
)

// ToolDecision is the payload of EventToolDecision.
type ToolDecision struct {
	ID       string `json:"id"`
	Decision string `json:"decision"`
}
