package agent

import "slices"

// PermissionMode controls which tools the claude-code backend must get
// approved before running.
type PermissionMode string

const (
	// PermissionDefault asks before Write, Edit and Bash.
	PermissionDefault PermissionMode = "default"
	// PermissionAcceptEdits asks only before Bash.
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	// PermissionBypass never asks.
	PermissionBypass PermissionMode = "bypassPermissions"
)

// Valid reports whether m is a known mode.
func (m PermissionMode) Valid() bool {
	switch m {
	case PermissionDefault, PermissionAcceptEdits, PermissionBypass:
		return true
	}
	return false
}

// RequiresApproval reports whether tool must be approved under m.
// Unknown modes behave like PermissionDefault.
func (m PermissionMode) RequiresApproval(tool string) bool {
	switch m {
	case PermissionBypass:
		return false
	case PermissionAcceptEdits:
		return tool == "Bash"
	default:
		return tool == "Write" || tool == "Edit" || tool == "Bash"
	}
}

// DefaultAllowedTools is offered to claude-code when none are configured.
var DefaultAllowedTools = []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"}

// ClaudeSettings configures the claude-code backend.
type ClaudeSettings struct {
	Model          string
	PermissionMode PermissionMode
	MaxTurns       int
	AllowedTools   []string
	// BaseURL overrides the Anthropic endpoint.
	BaseURL string
	// ProtectedPaths are extra glob patterns whose writes always need
	// approval unless permissions are bypassed.
	ProtectedPaths []string
}

func (s ClaudeSettings) withDefaults() ClaudeSettings {
	if s.PermissionMode == "" {
		s.PermissionMode = PermissionAcceptEdits
	}
	if s.MaxTurns <= 0 {
		s.MaxTurns = 10
	}
	if len(s.AllowedTools) == 0 {
		s.AllowedTools = slices.Clone(DefaultAllowedTools)
	}
	return s
}

// CodexSettings configures the codex backend.
type CodexSettings struct {
	Model string
}

// Gemini output formats accepted by the CLI.
const (
	GeminiFormatStreamJSON = "stream-json"
	GeminiFormatJSON       = "json"
	GeminiFormatJSONL      = "jsonl"
)

// GeminiSettings configures the gemini-cli backend.
type GeminiSettings struct {
	Model        string
	OutputFormat string
}
