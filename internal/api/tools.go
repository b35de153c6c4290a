package api

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// param describes one input property of a tool.
type param struct {
	name     string
	kind     string
	desc     string
	required bool
}

// toolSpec is the declarative form of a tool offered to the model.
type toolSpec struct {
	name   string
	desc   string
	params []param
}

// builtinTools lists the tools in the order they are offered. Paths may be
// absolute or relative to the task workspace.
var builtinTools = []toolSpec{
	{"Read", "Read a file. Returns its contents with line numbers.", []param{
		{"file_path", "string", "Path of the file to read", true},
		{"offset", "integer", "1-indexed line to start from", false},
		{"limit", "integer", "Maximum number of lines to return", false},
	}},
	{"Write", "Write a file, creating parent directories as needed.", []param{
		{"file_path", "string", "Path of the file to write", true},
		{"content", "string", "Full file contents", true},
	}},
	{"Edit", "Replace text in a file. old_string must occur once unless replace_all is set.", []param{
		{"file_path", "string", "Path of the file to edit", true},
		{"old_string", "string", "Exact text to replace", true},
		{"new_string", "string", "Replacement text", true},
		{"replace_all", "boolean", "Replace every occurrence", false},
	}},
	{"Bash", "Run a shell command in the workspace and return its output.", []param{
		{"command", "string", "Command line to run", true},
		{"timeout", "integer", "Timeout in milliseconds (default 120000)", false},
		{"description", "string", "Short note on what the command does", false},
	}},
	{"Glob", "List files matching a glob pattern such as **/*.go.", []param{
		{"pattern", "string", "Glob pattern", true},
		{"path", "string", "Directory to search (default: workspace)", false},
	}},
	{"Grep", "Search file contents with a regular expression.", []param{
		{"pattern", "string", "Regular expression", true},
		{"path", "string", "File or directory to search", false},
		{"glob", "string", "Only search files matching this glob", false},
		{"context", "integer", "Lines of context around each match", false},
	}},
	{"ListDir", "List the entries of a directory.", []param{
		{"path", "string", "Directory to list", true},
	}},
}

func (s toolSpec) definition() anthropic.ToolUnionParam {
	props := make(map[string]any, len(s.params))
	var required []string
	for _, p := range s.params {
		props[p.name] = map[string]any{"type": p.kind, "description": p.desc}
		if p.required {
			required = append(required, p.name)
		}
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        s.name,
			Description: anthropic.String(s.desc),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		},
	}
}

// ToolDefinitions returns the tool schemas offered to the model.
func ToolDefinitions() []anthropic.ToolUnionParam {
	return AllowedToolDefinitions(nil)
}

// AllowedToolDefinitions returns the tool schemas whose names appear in
// allowed, in offer order. An empty list allows every tool.
func AllowedToolDefinitions(allowed []string) []anthropic.ToolUnionParam {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}

	var tools []anthropic.ToolUnionParam
	for _, spec := range builtinTools {
		if len(allowed) == 0 || set[spec.name] {
			tools = append(tools, spec.definition())
		}
	}
	return tools
}

// MutatingTools names the tools that change the workspace or run commands.
var MutatingTools = map[string]bool{
	"Write": true,
	"Edit":  true,
	"Bash":  true,
}
