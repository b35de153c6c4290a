package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	iexec "github.com/ShayCichocki/relay/internal/exec"
)

// DefaultMaxIterations bounds API calls per task when no limit is set.
const DefaultMaxIterations = 50

// ApprovalFunc decides whether a tool call may run. It may block.
type ApprovalFunc func(ctx context.Context, tool string, input json.RawMessage) bool

// AgentLoop manages the API call and tool execution cycle.
type AgentLoop struct {
	client           *Client
	executor         *ToolExecutor
	tools            []anthropic.ToolUnionParam
	requiresApproval func(tool string, input json.RawMessage) bool
	approve          ApprovalFunc
	onStream         func(StreamEvent)
	maxIterations    int
	maxTokens        int64
}

// StreamEvent represents an event during agent execution for streaming to UI.
type StreamEvent struct {
	Type    string // "text", "tool_use", "tool_result", "tool_denied", "done", "error"
	Content string
	Tool    string
	Input   json.RawMessage
}

// LoopResult contains the results of an agent loop execution.
type LoopResult struct {
	Output        string
	TokensIn      int64
	TokensOut     int64
	ToolCalls     int
	Denied        int
	Iterations    int
	FilesModified []string
}

// AgentLoopConfig contains configuration for the agent loop.
type AgentLoopConfig struct {
	Client  *Client
	WorkDir string
	// Runner executes Bash and Grep tools; nil uses os/exec.
	Runner iexec.CommandRunner
	// MaxIterations caps API calls (0 = DefaultMaxIterations).
	MaxIterations int
	// MaxTokens caps each response (0 = 8192).
	MaxTokens int64
	// AllowedTools limits the offered tools; empty offers all.
	AllowedTools []string
	// RequiresApproval reports whether a tool call must pass Approve first.
	RequiresApproval func(tool string, input json.RawMessage) bool
	// Approve is consulted for tools that require approval. A nil Approve
	// denies them.
	Approve ApprovalFunc
}

// NewAgentLoop creates a new agent loop with the given configuration.
func NewAgentLoop(cfg AgentLoopConfig) *AgentLoop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	runner := cfg.Runner
	if runner == nil {
		runner = iexec.NewRunner()
	}
	requires := cfg.RequiresApproval
	if requires == nil {
		requires = func(string, json.RawMessage) bool { return false }
	}

	return &AgentLoop{
		client:           cfg.Client,
		executor:         NewToolExecutorWithRunner(cfg.WorkDir, runner),
		tools:            AllowedToolDefinitions(cfg.AllowedTools),
		requiresApproval: requires,
		approve:          cfg.Approve,
		maxIterations:    maxIter,
		maxTokens:        maxTokens,
	}
}

// SetStreamHandler sets a callback for streaming events during execution.
func (l *AgentLoop) SetStreamHandler(fn func(StreamEvent)) {
	l.onStream = fn
}

// emit sends a stream event if a handler is configured.
func (l *AgentLoop) emit(event StreamEvent) {
	if l.onStream != nil {
		l.onStream(event)
	}
}

// Run executes the agent loop with the given prompts.
func (l *AgentLoop) Run(ctx context.Context, systemPrompt, userPrompt string) (*LoopResult, error) {
	result := &LoopResult{}
	defer func() { result.FilesModified = l.executor.ModifiedFiles() }()

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		params := anthropic.MessageNewParams{
			Model:     l.client.Model(),
			MaxTokens: l.maxTokens,
			Messages:  messages,
			Tools:     l.tools,
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
		}

		resp, err := l.client.Messages().New(ctx, params)
		if err != nil {
			l.emit(StreamEvent{Type: "error", Content: err.Error()})
			return result, fmt.Errorf("API call failed: %w", err)
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens
		l.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput string

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput += variant.Text
				l.emit(StreamEvent{Type: "text", Content: variant.Text})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				result.ToolCalls++
				l.emit(StreamEvent{Type: "tool_use", Tool: variant.Name, Input: variant.Input})
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				toolResult := l.runTool(ctx, variant.Name, variant.Input)
				if toolResult.denied {
					result.Denied++
				}
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, toolResult.Content, toolResult.IsError))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn || len(toolResultBlocks) == 0 {
			result.Output = textOutput
			l.emit(StreamEvent{Type: "done"})
			return result, nil
		}

		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(toolResultBlocks...))
	}

	return result, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}

type loopToolResult struct {
	ToolResult
	denied bool
}

// runTool gates the call on approval, then executes it.
func (l *AgentLoop) runTool(ctx context.Context, name string, input json.RawMessage) loopToolResult {
	if l.requiresApproval(name, input) {
		if l.approve == nil || !l.approve(ctx, name, input) {
			msg := fmt.Sprintf("Tool use denied: %s was not approved by the user.", name)
			l.emit(StreamEvent{Type: "tool_denied", Tool: name, Content: msg})
			return loopToolResult{ToolResult: ToolResult{Content: msg, IsError: true}, denied: true}
		}
	}

	res := l.executor.Execute(ctx, name, input)
	l.emit(StreamEvent{Type: "tool_result", Tool: name, Content: truncateForDisplay(res.Content)})
	return loopToolResult{ToolResult: res}
}

func truncateForDisplay(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
