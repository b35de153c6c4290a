package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/relay/internal/api"
	iexec "github.com/ShayCichocki/relay/internal/exec"
	"github.com/ShayCichocki/relay/internal/protect"
	"github.com/ShayCichocki/relay/pkg/models"
)

// NoStreamText is streamed when a claude-code task produced no text.
const NoStreamText = "[no-stream-text]\n"

// ClientFactory builds the Anthropic client used for one task.
type ClientFactory func(settings ClaudeSettings) (*api.Client, error)

// ClaudeAdapter runs tasks through the Anthropic Messages API tool loop.
type ClaudeAdapter struct {
	hooks
	settings  ClaudeSettings
	newClient ClientFactory
	runner    iexec.CommandRunner
	guard     *protect.Detector
}

// ClaudeOption configures a ClaudeAdapter.
type ClaudeOption func(*ClaudeAdapter)

// WithClientFactory replaces how the Anthropic client is built.
func WithClientFactory(f ClientFactory) ClaudeOption {
	return func(a *ClaudeAdapter) { a.newClient = f }
}

// WithClaudeRunner sets the runner used by the Bash and Grep tools.
func WithClaudeRunner(r iexec.CommandRunner) ClaudeOption {
	return func(a *ClaudeAdapter) { a.runner = r }
}

// WithPathGuard replaces the protected path rules.
func WithPathGuard(d *protect.Detector) ClaudeOption {
	return func(a *ClaudeAdapter) { a.guard = d }
}

// NewClaudeAdapter creates the claude-code backend.
func NewClaudeAdapter(settings ClaudeSettings, opts ...ClaudeOption) *ClaudeAdapter {
	guard := protect.New()
	for _, p := range settings.ProtectedPaths {
		guard.AddPattern(p)
	}
	a := &ClaudeAdapter{
		settings:  settings.withDefaults(),
		newClient: defaultClaudeClient,
		runner:    iexec.NewRunner(),
		guard:     guard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultClaudeClient(s ClaudeSettings) (*api.Client, error) {
	return api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(s.Model),
		UseAWSBedrock: os.Getenv("CLAUDE_CODE_USE_BEDROCK") != "",
		AWSRegion:     os.Getenv("AWS_REGION"),
		AWSProfile:    os.Getenv("AWS_PROFILE"),
		BaseURL:       s.BaseURL,
	})
}

// Name implements Adapter.
func (a *ClaudeAdapter) Name() models.AgentType { return models.AgentClaudeCode }

// Settings returns the effective settings.
func (a *ClaudeAdapter) Settings() ClaudeSettings { return a.settings }

// IsAvailable reports whether Anthropic credentials or a cloud provider
// switch are present in the environment.
func (a *ClaudeAdapter) IsAvailable(ctx context.Context) (bool, error) {
	for _, key := range []string{
		"ANTHROPIC_API_KEY",
		"CLAUDE_CODE_USE_BEDROCK",
		"CLAUDE_CODE_USE_VERTEX",
		"CLAUDE_CODE_USE_FOUNDRY",
	} {
		if os.Getenv(key) != "" {
			a.logf("[claude] available via %s", key)
			return true, nil
		}
	}
	a.logf("[claude] unavailable: no credentials")
	return false, nil
}

// Execute implements Adapter.
func (a *ClaudeAdapter) Execute(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	start := time.Now()
	s := a.settings

	client, err := a.newClient(s)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}

	a.logf("[claude] task %s: model=%s mode=%s maxTurns=%d tools=%d",
		task.ID, client.Model(), s.PermissionMode, s.MaxTurns, len(s.AllowedTools))

	loop := api.NewAgentLoop(api.AgentLoopConfig{
		Client:           client,
		WorkDir:          task.Workspace,
		Runner:           a.runner,
		MaxIterations:    s.MaxTurns,
		AllowedTools:     s.AllowedTools,
		RequiresApproval: func(tool string, input json.RawMessage) bool {
			return s.PermissionMode.RequiresApproval(tool) || a.touchesProtected(task, tool, input)
		},
		Approve: func(ctx context.Context, tool string, input json.RawMessage) bool {
			return a.approve(ctx, ToolUse{
				TaskID:   task.ID,
				Agent:    models.AgentClaudeCode,
				ToolName: tool,
				Input:    decodeToolInput(input),
			})
		},
	})

	streamed := false
	loop.SetStreamHandler(func(e api.StreamEvent) {
		switch e.Type {
		case "text":
			if e.Content != "" {
				streamed = true
				a.emit(task, StageStdout, e.Content)
			}
		case "tool_use":
			a.emit(task, StageTool, api.FormatToolAction(e.Tool, e.Input)+"\n")
		case "tool_denied":
			a.emit(task, StageTool, e.Content+"\n")
		}
	})

	out, runErr := loop.Run(ctx, claudeSystemPrompt(task), task.Description)
	if !streamed {
		a.emit(task, StageStdout, NoStreamText)
	}
	if runErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	a.logf("[claude] task %s: iterations=%d tools=%d denied=%d err=%v",
		task.ID, out.Iterations, out.ToolCalls, out.Denied, runErr)

	result := &models.TaskResult{
		ID:            task.ID,
		Status:        models.TaskStatusCompleted,
		Duration:      time.Since(start),
		Agent:         models.AgentClaudeCode,
		FilesModified: out.FilesModified,
		Summary:       strings.TrimSpace(out.Output),
	}
	if out.Denied > 0 {
		result.HandoffNotes = append(result.HandoffNotes,
			fmt.Sprintf("%d tool call(s) were denied during execution.", out.Denied))
	}
	if runErr != nil {
		result.Status = models.TaskStatusFailed
		result.Errors = []string{runErr.Error()}
		if result.Summary == "" {
			result.Summary = "Claude agent failed."
		}
	}
	if result.Summary == "" {
		result.Summary = "Claude agent completed the task."
	}
	return result, nil
}

// touchesProtected reports whether a Write or Edit targets a protected
// path. Nothing is protected when permissions are bypassed.
func (a *ClaudeAdapter) touchesProtected(task *models.Task, tool string, input json.RawMessage) bool {
	if a.guard == nil || a.settings.PermissionMode == PermissionBypass {
		return false
	}
	if tool != "Write" && tool != "Edit" {
		return false
	}
	var p struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &p); err != nil || p.FilePath == "" {
		return false
	}
	protected, reason := a.guard.CheckInWorkspace(task.Workspace, p.FilePath)
	if protected {
		a.logf("[claude] task %s: %s %s needs approval: %s", task.ID, tool, p.FilePath, reason)
	}
	return protected
}

func claudeSystemPrompt(task *models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a coding agent working in %s.\n", task.Workspace)
	fmt.Fprintf(&sb, "Current task: %s\n", task.Title)
	if len(task.InputContext) > 0 {
		sb.WriteString("\nContext:\n")
		for _, line := range task.InputContext {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	if len(task.ExpectedOutput) > 0 {
		sb.WriteString("\nExpected output:\n")
		for _, line := range task.ExpectedOutput {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	sb.WriteString("\nFinish with a short summary of what you changed.")
	return sb.String()
}

func decodeToolInput(raw json.RawMessage) map[string]any {
	m := map[string]any{}
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}

var _ Adapter = (*ClaudeAdapter)(nil)
