package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	iexec "github.com/ShayCichocki/relay/internal/exec"
	"github.com/ShayCichocki/relay/internal/protect"
)

const (
	defaultBashTimeout = 120 * time.Second
	grepTimeout        = 30 * time.Second
	maxToolOutput      = 30000
)

// ToolExecutor executes tool calls from the Claude API inside one task
// workspace and remembers which files it changed.
type ToolExecutor struct {
	workDir string
	runner  iexec.CommandRunner

	mu       sync.Mutex
	modified map[string]struct{}
}

// NewToolExecutor creates a tool executor for workDir that shells out with
// the default runner.
func NewToolExecutor(workDir string) *ToolExecutor {
	return NewToolExecutorWithRunner(workDir, iexec.NewRunner())
}

// NewToolExecutorWithRunner creates a tool executor that shells out through runner.
func NewToolExecutorWithRunner(workDir string, runner iexec.CommandRunner) *ToolExecutor {
	return &ToolExecutor{
		workDir:  workDir,
		runner:   runner,
		modified: make(map[string]struct{}),
	}
}

// ModifiedFiles returns workspace-relative paths written or edited so far,
// sorted.
func (e *ToolExecutor) ModifiedFiles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	files := make([]string, 0, len(e.modified))
	for f := range e.modified {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (e *ToolExecutor) markModified(path string) {
	rel, err := filepath.Rel(e.workDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	e.mu.Lock()
	e.modified[rel] = struct{}{}
	e.mu.Unlock()
}

// ToolResult is the text returned to the model for one tool call.
type ToolResult struct {
	Content string
	IsError bool
}

func failf(format string, args ...any) ToolResult {
	return ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// decode unmarshals tool input into params. On failure it returns the
// result to hand back to the model.
func decode(input json.RawMessage, params any) (ToolResult, bool) {
	if err := json.Unmarshal(input, params); err != nil {
		return failf("Invalid parameters: %v", err), false
	}
	return ToolResult{}, true
}

// Execute runs a tool by name with the given JSON input.
func (e *ToolExecutor) Execute(ctx context.Context, name string, input json.RawMessage) ToolResult {
	handlers := map[string]func(context.Context, json.RawMessage) ToolResult{
		"Read":    e.read,
		"Write":   e.write,
		"Edit":    e.edit,
		"Bash":    e.bash,
		"Glob":    e.glob,
		"Grep":    e.grep,
		"ListDir": e.listDir,
	}
	h, ok := handlers[name]
	if !ok {
		return failf("Unknown tool: %s", name)
	}
	return h(ctx, input)
}

func (e *ToolExecutor) read(_ context.Context, input json.RawMessage) ToolResult {
	var p struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	data, err := os.ReadFile(e.resolvePath(p.FilePath))
	if err != nil {
		return failf("Failed to read file: %v", err)
	}
	lines := strings.Split(string(data), "\n")

	start := 0
	if p.Offset > 0 {
		start = p.Offset - 1
		if start >= len(lines) {
			return failf("Offset beyond end of file")
		}
	}
	end := len(lines)
	if p.Limit > 0 {
		end = min(start+p.Limit, len(lines))
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i+1, lines[i])
	}
	return ToolResult{Content: b.String()}
}

func (e *ToolExecutor) write(_ context.Context, input json.RawMessage) ToolResult {
	var p struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	path := e.resolvePath(p.FilePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return failf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0644); err != nil {
		return failf("Failed to write file: %v", err)
	}
	e.markModified(path)
	return ToolResult{Content: fmt.Sprintf("Wrote %d bytes to %s", len(p.Content), p.FilePath)}
}

func (e *ToolExecutor) edit(_ context.Context, input json.RawMessage) ToolResult {
	var p struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	path := e.resolvePath(p.FilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return failf("Failed to read file: %v", err)
	}
	text := string(data)

	n := strings.Count(text, p.OldString)
	switch {
	case n == 0:
		return failf("old_string not found in file")
	case n > 1 && !p.ReplaceAll:
		return failf("old_string found %d times; must be unique or use replace_all=true", n)
	}

	limit := 1
	if p.ReplaceAll {
		limit = -1
	}
	if err := os.WriteFile(path, []byte(strings.Replace(text, p.OldString, p.NewString, limit)), 0644); err != nil {
		return failf("Failed to write file: %v", err)
	}
	e.markModified(path)

	if p.ReplaceAll {
		return ToolResult{Content: fmt.Sprintf("Replaced %d occurrences", n)}
	}
	return ToolResult{Content: "Edit successful"}
}

func (e *ToolExecutor) bash(ctx context.Context, input json.RawMessage) ToolResult {
	var p struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	timeout := defaultBashTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := e.runner.RunShell(ctx, e.workDir, p.Command)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return failf("Command timed out after %v:\n%s", timeout, out)
		}
		return failf("%s\nError: %v", out, err)
	}
	return ToolResult{Content: clip(string(out))}
}

// glob walks the search root skipping hidden directories. A pattern without
// a slash matches file names at any depth; otherwise it is matched against
// the root-relative path with "**" support.
func (e *ToolExecutor) glob(_ context.Context, input json.RawMessage) ToolResult {
	var p struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	root := e.workDir
	if p.Path != "" {
		root = e.resolvePath(p.Path)
	}
	byName := !strings.Contains(p.Pattern, "/")

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if byName {
			if ok, _ := filepath.Match(p.Pattern, d.Name()); ok {
				matches = append(matches, rel)
			}
		} else if protect.Match(p.Pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return failf("Glob error: %v", err)
	}
	if len(matches) == 0 {
		return ToolResult{Content: "No files matched the pattern"}
	}
	return ToolResult{Content: strings.Join(matches, "\n")}
}

func (e *ToolExecutor) grep(ctx context.Context, input json.RawMessage) ToolResult {
	var p struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
		Context int    `json:"context"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	args := []string{"--color=never", "-n"}
	if p.Context > 0 {
		args = append(args, "-C", strconv.Itoa(p.Context))
	}
	if p.Glob != "" {
		args = append(args, "--glob", p.Glob)
	}
	target := e.workDir
	if p.Path != "" {
		target = e.resolvePath(p.Path)
	}
	args = append(args, p.Pattern, target)

	ctx, cancel := context.WithTimeout(ctx, grepTimeout)
	defer cancel()

	// rg exits non-zero when nothing matches.
	out, _ := e.runner.Run(ctx, e.workDir, "rg", args...)
	if len(out) == 0 {
		return ToolResult{Content: "No matches found"}
	}
	return ToolResult{Content: clip(string(out))}
}

func (e *ToolExecutor) listDir(_ context.Context, input json.RawMessage) ToolResult {
	var p struct {
		Path string `json:"path"`
	}
	if res, ok := decode(input, &p); !ok {
		return res
	}

	entries, err := os.ReadDir(e.resolvePath(p.Path))
	if err != nil {
		return failf("Failed to read directory: %v", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		info, err := entry.Info()
		switch {
		case err != nil:
			fmt.Fprintf(&b, "? %s\n", entry.Name())
		case entry.IsDir():
			fmt.Fprintf(&b, "d %s/\n", entry.Name())
		default:
			fmt.Fprintf(&b, "- %s (%d bytes)\n", entry.Name(), info.Size())
		}
	}
	return ToolResult{Content: b.String()}
}

func (e *ToolExecutor) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workDir, path)
}

func clip(s string) string {
	if len(s) > maxToolOutput {
		return s[:maxToolOutput] + "\n... (output truncated)"
	}
	return s
}

// actionVerbs maps tools that act on one named input field to the verb
// shown in stream output.
var actionVerbs = map[string]struct{ verb, field string }{
	"Read":  {"Reading", "file_path"},
	"Write": {"Writing", "file_path"},
	"Edit":  {"Editing", "file_path"},
	"Glob":  {"Searching", "pattern"},
	"Grep":  {"Grep", "pattern"},
}

// FormatToolAction returns a short human-readable description of a tool
// call, such as "Editing main.go" or "Running go".
func FormatToolAction(name string, input json.RawMessage) string {
	var fields map[string]any
	_ = json.Unmarshal(input, &fields)
	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}

	switch name {
	case "Bash":
		if d := str("description"); d != "" {
			return d
		}
		cmd, _, _ := strings.Cut(str("command"), " ")
		return "Running " + shorten(cmd, 20)
	case "ListDir":
		return "Listing directory"
	}

	a, ok := actionVerbs[name]
	if !ok {
		return name
	}
	v := str(a.field)
	if a.field == "file_path" {
		v = filepath.Base(v)
	} else {
		v = shorten(v, 15)
	}
	return a.verb + " " + v
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
