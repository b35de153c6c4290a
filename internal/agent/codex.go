package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	iexec "github.com/ShayCichocki/relay/internal/exec"
	"github.com/ShayCichocki/relay/pkg/models"
)

// CodexAdapter runs tasks through `codex exec --json`.
type CodexAdapter struct {
	hooks
	settings CodexSettings
	runner   iexec.CommandRunner
}

// NewCodexAdapter creates the codex backend. A nil runner uses os/exec.
func NewCodexAdapter(settings CodexSettings, runner iexec.CommandRunner) *CodexAdapter {
	if runner == nil {
		runner = iexec.NewRunner()
	}
	return &CodexAdapter{settings: settings, runner: runner}
}

// Name implements Adapter.
func (c *CodexAdapter) Name() models.AgentType { return models.AgentCodex }

// IsAvailable requires the codex binary and OPENAI_API_KEY.
func (c *CodexAdapter) IsAvailable(ctx context.Context) (bool, error) {
	if _, err := c.runner.LookPath("codex"); err != nil {
		c.logf("[codex] unavailable: %v", err)
		return false, nil
	}
	hasKey := os.Getenv("OPENAI_API_KEY") != ""
	c.logf("[codex] hasKey=%v", hasKey)
	return hasKey, nil
}

type codexEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
	Item *struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Changes []struct {
			Path string `json:"path"`
		} `json:"changes"`
	} `json:"item"`
}

// Execute implements Adapter.
func (c *CodexAdapter) Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	start := time.Now()

	args := []string{"exec", "--json"}
	if c.settings.Model != "" {
		args = append(args, "--model", c.settings.Model)
	}
	args = append(args, task.Description)
	c.logf("[codex] task %s: model=%q", task.ID, c.settings.Model)

	var (
		messages []string
		files    []string
		errs     []string
	)

	runErr := c.runner.Stream(ctx, iexec.StreamRequest{
		Name: "codex",
		Args: args,
		Dir:  task.Workspace,
		OnStdout: func(line string) {
			line = strings.TrimSpace(line)
			if line == "" {
				return
			}
			var ev codexEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				c.emit(task, StageStdout, line+"\n")
				return
			}
			switch ev.Type {
			case "item.completed":
				if ev.Item == nil {
					return
				}
				switch ev.Item.Type {
				case "agent_message":
					messages = append(messages, ev.Item.Text)
					c.emit(task, StageStdout, ev.Item.Text+"\n")
				case "reasoning":
					c.emit(task, StageThinking, ev.Item.Text+"\n")
				case "file_change":
					for _, ch := range ev.Item.Changes {
						if !slices.Contains(files, ch.Path) {
							files = append(files, ch.Path)
						}
					}
				}
			case "turn.failed":
				msg := "codex turn failed"
				if ev.Error != nil && ev.Error.Message != "" {
					msg = ev.Error.Message
				}
				errs = append(errs, msg)
			case "error":
				errs = append(errs, ev.Message)
			}
		},
		OnStderr: func(line string) {
			c.emit(task, StageStderr, "[stderr] "+line+"\n")
		},
	})

	var exitErr *iexec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		if len(errs) == 0 {
			errs = append(errs, fmt.Sprintf("Codex CLI exited with code %d", exitErr.Code))
		}
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("run codex: %w", runErr)
	}

	result := &models.TaskResult{
		ID:            task.ID,
		Status:        models.TaskStatusCompleted,
		Duration:      time.Since(start),
		Agent:         models.AgentCodex,
		FilesModified: files,
		Summary:       "Codex agent completed the task.",
		Errors:        errs,
	}
	if len(messages) > 0 {
		result.Summary = messages[len(messages)-1]
	}
	if len(errs) > 0 {
		result.Status = models.TaskStatusFailed
	}
	return result, nil
}

var _ Adapter = (*CodexAdapter)(nil)
