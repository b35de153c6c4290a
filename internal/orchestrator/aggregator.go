package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/relay/pkg/models"
)

// AggregatedResult is the run-level view of a set of task results.
type AggregatedResult struct {
	Summary string
	Errors  []string
}

// Aggregate joins one "[id] status: summary" line per result and flattens
// every result's errors, both in input order.
func Aggregate(results []*models.TaskResult) AggregatedResult {
	lines := make([]string, 0, len(results))
	errs := []string{}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", r.ID, r.Status, r.Summary))
		errs = append(errs, r.Errors...)
	}
	return AggregatedResult{
		Summary: strings.Join(lines, "\n"),
		Errors:  errs,
	}
}
