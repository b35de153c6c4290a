package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/pkg/models"
)

var (
	labelColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	faintColor   = color.New(color.Faint)
)

// consoleRenderer prints events as coloured lines. Streamed text is
// buffered per task and printed a line at a time.
type consoleRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	partial map[string]string
}

func newConsoleRenderer(w io.Writer) *consoleRenderer {
	return &consoleRenderer{w: w, partial: make(map[string]string)}
}

// Handle is an orchestrator.Listener.
func (r *consoleRenderer) Handle(e orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p := e.Data.(type) {
	case orchestrator.PlanCreated:
		r.line(labelColor, "PLAN", "%s (%d tasks: %s)", p.PlanID, len(p.TaskIDs), strings.Join(p.TaskIDs, ", "))

	case orchestrator.TaskStarted:
		r.line(labelColor, "START", "%s on %s", p.TaskID, p.Agent)

	case orchestrator.AgentStream:
		r.stream(p.TaskID, p.Text)

	case orchestrator.TaskCompleted:
		r.flush(p.TaskID)
		if p.Status == models.TaskStatusCompleted {
			r.line(successColor, "DONE", "%s", p.TaskID)
		} else {
			r.line(failColor, "FAILED", "%s", p.TaskID)
		}

	case orchestrator.ToolApprovalRequest:
		r.line(warnColor, "APPROVE?", "%s wants %s%s", p.TaskID, p.ToolName, inputHint(p.Input))
		fmt.Fprintf(r.w, "           relay approve %s   |   relay approve %s --deny\n", p.ID, p.ID)

	case orchestrator.ToolDecision:
		c := successColor
		if p.Decision != orchestrator.DecisionAllow {
			c = warnColor
		}
		r.line(c, "TOOL", "%s %s", p.ID, p.Decision)

	case orchestrator.RunCompleted:
		r.flushAll()
		r.line(successColor, "COMPLETE", "%s", p.PlanID)
		r.summary(p.Summary)

	case orchestrator.RunFailed:
		r.flushAll()
		r.line(failColor, "FAILED", "%s", p.PlanID)
		for _, msg := range p.Errors {
			fmt.Fprintf(r.w, "  %s\n", failColor.Sprint(msg))
		}
	}
}

func (r *consoleRenderer) line(c *color.Color, label, format string, args ...any) {
	fmt.Fprintf(r.w, "%s %s\n", c.Sprintf("[%s]", label), fmt.Sprintf(format, args...))
}

func (r *consoleRenderer) summary(s string) {
	for _, l := range strings.Split(s, "\n") {
		if l != "" {
			fmt.Fprintf(r.w, "  %s\n", l)
		}
	}
}

func (r *consoleRenderer) stream(taskID, text string) {
	buffered := r.partial[taskID] + text
	for {
		idx := strings.IndexByte(buffered, '\n')
		if idx == -1 {
			break
		}
		r.streamLine(taskID, buffered[:idx])
		buffered = buffered[idx+1:]
	}
	r.partial[taskID] = buffered
}

func (r *consoleRenderer) streamLine(taskID, line string) {
	fmt.Fprintf(r.w, "  %s %s\n", faintColor.Sprintf("%s |", taskID), line)
}

func (r *consoleRenderer) flush(taskID string) {
	if rest := r.partial[taskID]; rest != "" {
		r.streamLine(taskID, rest)
	}
	delete(r.partial, taskID)
}

func (r *consoleRenderer) flushAll() {
	for id := range r.partial {
		r.flush(id)
	}
}

// jsonRenderer writes one JSON object per event.
type jsonRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONRenderer(w io.Writer) *jsonRenderer {
	return &jsonRenderer{enc: json.NewEncoder(w)}
}

// Handle is an orchestrator.Listener.
func (r *jsonRenderer) Handle(e orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(e); err != nil {
		warnColor.Fprintf(color.Error, "encode %s event: %v\n", e.Type, err)
	}
}

func inputHint(input map[string]any) string {
	for _, key := range []string{"command", "file_path", "path", "pattern"} {
		if v, ok := input[key].(string); ok && v != "" {
			if len(v) > 80 {
				v = v[:77] + "..."
			}
			return ": " + v
		}
	}
	return ""
}
