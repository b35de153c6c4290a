package models

// AgentType identifies an execution backend. Any registered tag is accepted;
// the constants below are the backends shipped with relay.
type AgentType string

const (
	// AgentMock is an always-available backend that fakes execution.
	AgentMock AgentType = "mock"
	// AgentClaudeCode runs tasks through the Anthropic Messages API.
	AgentClaudeCode AgentType = "claude-code"
	// AgentCodex runs tasks through the codex CLI.
	AgentCodex AgentType = "codex"
	// AgentGeminiCLI runs tasks through the gemini CLI.
	AgentGeminiCLI AgentType = "gemini-cli"
)

// KnownAgents lists the built-in backends in display order.
var KnownAgents = []AgentType{AgentClaudeCode, AgentCodex, AgentGeminiCLI, AgentMock}

// String returns the tag.
func (a AgentType) String() string {
	return string(a)
}

// Known reports whether a is one of the built-in backends.
func (a AgentType) Known() bool {
	for _, k := range KnownAgents {
		if a == k {
			return true
		}
	}
	return false
}
