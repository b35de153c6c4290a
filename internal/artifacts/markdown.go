// Package artifacts writes tasks and results as markdown so later tasks,
// humans and other tools can read what happened in a run.
package artifacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/relay/pkg/models"
)

// Writer stores task and result documents and returns where each went.
type Writer interface {
	WriteTask(ctx context.Context, task *models.Task) (string, error)
	WriteResult(ctx context.Context, result *models.TaskResult) (string, error)
}

// TaskPath is the slash-separated location of a task document.
func TaskPath(id string) string { return "tasks/" + id + ".md" }

// ResultPath is the slash-separated location of a result document.
func ResultPath(id string) string { return "tasks/" + id + "-result.md" }

// TaskMarkdown renders task as a markdown document.
func TaskMarkdown(task *models.Task) string {
	lines := []string{
		"# Task: " + task.Title,
		"",
		"## Metadata",
		"- ID: " + task.ID,
		"- Agent: " + string(task.Agent),
		"- Status: " + string(task.Status),
		"- Dependencies: [" + strings.Join(task.Dependencies, ", ") + "]",
		"- Workspace: " + task.Workspace,
		"",
		"## Description",
		task.Description,
		"",
		"## Input Context",
	}
	lines = append(lines, bullets(task.InputContext, false)...)
	lines = append(lines, "", "## Expected Output")
	lines = append(lines, bullets(task.ExpectedOutput, false)...)
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// ResultMarkdown renders result as a markdown document. Empty lists are
// written as "- (none)".
func ResultMarkdown(result *models.TaskResult) string {
	lines := []string{
		"# Result: " + result.ID,
		"",
		"## Metadata",
		"- ID: " + result.ID,
		"- Status: " + string(result.Status),
		fmt.Sprintf("- Duration: %dms", result.Duration.Milliseconds()),
		"- Agent: " + string(result.Agent),
		"",
		"## Files Modified",
	}
	lines = append(lines, bullets(result.FilesModified, true)...)
	lines = append(lines, "", "## Summary", result.Summary, "", "## Handoff Notes")
	lines = append(lines, bullets(result.HandoffNotes, true)...)
	lines = append(lines, "", "## Errors (if any)")
	lines = append(lines, bullets(result.Errors, true)...)
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func bullets(items []string, placeholder bool) []string {
	if len(items) == 0 {
		if placeholder {
			return []string{"- (none)"}
		}
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = "- " + item
	}
	return out
}
