package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/relay/internal/graph"
	"github.com/ShayCichocki/relay/pkg/models"
)

// ErrGraphStalled is matched by every *StallError.
var ErrGraphStalled = errors.New("graph stalled")

// StallError reports pending tasks that can never become ready.
type StallError struct {
	// Blocked lists the pending task ids.
	Blocked []string
	// Failed lists ids of executed tasks that failed. When non-empty the
	// stall is attributed to them rather than to a cycle.
	Failed []string
	// Cycle is one dependency cycle, if found.
	Cycle []string
	// Missing maps task ids to dependencies absent from the plan.
	Missing map[string][]string
}

func (e *StallError) Error() string {
	if len(e.Failed) > 0 {
		return fmt.Sprintf("Tasks %s blocked by failed tasks: %s",
			strings.Join(e.Blocked, ", "), strings.Join(e.Failed, ", "))
	}

	var b strings.Builder
	b.WriteString("No runnable tasks found (possible dependency cycle).")
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, " Cycle: %s.", strings.Join(e.Cycle, " -> "))
	}
	if len(e.Missing) > 0 {
		ids := make([]string, 0, len(e.Missing))
		for id := range e.Missing {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s -> %s", id, strings.Join(e.Missing[id], ", ")))
		}
		fmt.Fprintf(&b, " Unknown dependencies: %s.", strings.Join(parts, "; "))
	}
	return b.String()
}

// Is makes errors.Is(err, ErrGraphStalled) succeed.
func (e *StallError) Is(target error) bool {
	return target == ErrGraphStalled
}

// classifyStall builds the stall error from the graph and collected results.
func classifyStall(g *graph.TaskGraph, results []*models.TaskResult) *StallError {
	stall := &StallError{Blocked: g.IDsWithStatus(models.TaskStatusPending)}
	for _, r := range results {
		if r.Status == models.TaskStatusFailed {
			stall.Failed = append(stall.Failed, r.ID)
		}
	}
	if len(stall.Failed) == 0 {
		stall.Cycle = g.FindCycle()
		if missing := g.MissingDependencies(); len(missing) > 0 {
			stall.Missing = missing
		}
	}
	return stall
}
