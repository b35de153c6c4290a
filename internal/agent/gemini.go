package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	iexec "github.com/ShayCichocki/relay/internal/exec"
	"github.com/ShayCichocki/relay/pkg/models"
)

// GeminiAdapter runs tasks through the gemini CLI.
type GeminiAdapter struct {
	hooks
	settings GeminiSettings
	runner   iexec.CommandRunner
}

// NewGeminiAdapter creates the gemini-cli backend. A nil runner uses os/exec.
func NewGeminiAdapter(settings GeminiSettings, runner iexec.CommandRunner) *GeminiAdapter {
	if settings.OutputFormat == "" {
		settings.OutputFormat = GeminiFormatStreamJSON
	}
	if runner == nil {
		runner = iexec.NewRunner()
	}
	return &GeminiAdapter{settings: settings, runner: runner}
}

// Name implements Adapter.
func (g *GeminiAdapter) Name() models.AgentType { return models.AgentGeminiCLI }

// IsAvailable runs `gemini --version`.
func (g *GeminiAdapter) IsAvailable(ctx context.Context) (bool, error) {
	if _, err := g.runner.Run(ctx, "", "gemini", "--version"); err != nil {
		g.logf("[gemini] unavailable: %v", err)
		return false, nil
	}
	return true, nil
}

// Execute implements Adapter.
func (g *GeminiAdapter) Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	start := time.Now()
	format := g.settings.OutputFormat

	args := []string{"--output-format", format, "--prompt", task.Description}
	if g.settings.Model != "" {
		args = append(args, "--model", g.settings.Model)
	}
	g.logf("[gemini] task %s: args=%v", task.ID, args)

	var (
		lastMessage string
		errs        []string
		buffered    []string
	)

	handle := func(event map[string]any, raw string) {
		switch event["type"] {
		case "message":
			text, _ := event["message"].(string)
			if text == "" {
				text, _ = event["content"].(string)
			}
			if text != "" {
				lastMessage = text
				g.emit(task, StageStdout, text+"\n")
			}
		case "result":
			if text := extractResultText(event["result"]); text != "" {
				lastMessage = text
				g.emit(task, StageStdout, text+"\n")
			}
		case "error":
			errs = append(errs, raw)
		}
	}

	parse := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to parse Gemini event: %v", err))
			return
		}
		handle(event, line)
	}

	runErr := g.runner.Stream(ctx, iexec.StreamRequest{
		Name: "gemini",
		Args: args,
		Dir:  task.Workspace,
		OnStdout: func(line string) {
			// A single json document may span lines.
			if format == GeminiFormatJSON {
				buffered = append(buffered, line)
				return
			}
			parse(line)
		},
		OnStderr: func(line string) {
			errs = append(errs, line)
			g.emit(task, StageStderr, "[stderr] "+line+"\n")
		},
	})

	if doc := strings.TrimSpace(strings.Join(buffered, "\n")); doc != "" {
		var event map[string]any
		if err := json.Unmarshal([]byte(doc), &event); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to parse Gemini JSON output: %v", err))
		} else {
			handle(event, doc)
		}
	}

	var exitErr *iexec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		if len(errs) == 0 {
			errs = append(errs, fmt.Sprintf("Gemini CLI exited with code %d", exitErr.Code))
		}
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("run gemini: %w", runErr)
	}

	g.logf("[gemini] task %s: completed with %d error(s)", task.ID, len(errs))

	result := &models.TaskResult{
		ID:       task.ID,
		Status:   models.TaskStatusCompleted,
		Duration: time.Since(start),
		Agent:    models.AgentGeminiCLI,
		Summary:  lastMessage,
		Errors:   errs,
	}
	if len(errs) > 0 {
		result.Status = models.TaskStatusFailed
	}
	if result.Summary == "" {
		result.Summary = "Gemini agent completed the task."
	}
	return result, nil
}

// extractResultText pulls text out of a string or an object carrying
// text, content or message.
func extractResultText(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case map[string]any:
		for _, key := range []string{"text", "content", "message", "output"} {
			if s, ok := r[key].(string); ok {
				return s
			}
		}
	}
	return ""
}

var _ Adapter = (*GeminiAdapter)(nil)
