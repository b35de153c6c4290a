package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/relay/internal/inbox"
	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/internal/state"
	"github.com/ShayCichocki/relay/pkg/models"
)

// resetFlags restores every flag to its default so commands can be run
// repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runRelay(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// testEnv isolates config and makes the mock backend fast.
func testEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("RELAY_MOCK_DELAY", "1ms")
	return t.TempDir()
}

func decodeEvents(t *testing.T, out string) []map[string]any {
	t.Helper()
	var events []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		events = append(events, e)
	}
	return events
}

func TestRunCommand_MockAgentJSON(t *testing.T) {
	ws := testEnv(t)

	out, err := runRelay(t, "run", "--workspace", ws, "--agent", "mock", "--json", "build the thing\nthen describe it")
	require.NoError(t, err, out)

	events := decodeEvents(t, out)
	require.NotEmpty(t, events)

	var types []string
	for _, e := range events {
		types = append(types, e["type"].(string))
	}
	assert.Equal(t, "plan:created", types[0])
	assert.Equal(t, "run:completed", types[len(types)-1])
	assert.Equal(t, 2, strings.Count(strings.Join(types, ","), "task:completed"))

	for _, name := range []string{"task-001.md", "task-001-result.md", "task-002.md", "task-002-result.md"} {
		assert.FileExists(t, filepath.Join(ws, ".relay", "tasks", name))
	}

	db, err := state.OpenProject(ws)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunCompleted, runs[0].Status)
	assert.Equal(t, "build the thing\nthen describe it", runs[0].Prompt)

	summary, err := state.NewUsageStore(db).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Providers[state.ProviderOther].Tasks)
}

func TestRunCommand_ConsoleOutput(t *testing.T) {
	ws := testEnv(t)

	out, err := runRelay(t, "run", "-w", ws, "-a", "mock", "ship it")
	require.NoError(t, err, out)

	for _, want := range []string{"[PLAN]", "[START] task-001 on mock", "[DONE] task-002", "[COMPLETE]", "Mock agent executed"} {
		assert.Contains(t, out, want)
	}
}

func TestRunCommand_DefaultPlanMatchesHelp(t *testing.T) {
	ws := testEnv(t)

	out, err := runRelay(t, "run", "-w", ws, "-a", "mock", "build the thing\nthen describe it")
	require.NoError(t, err, out)

	assert.Contains(t, runCmd.Long, "core execution task")
	assert.Contains(t, runCmd.Long, "follow-up summary task")

	for name, title := range map[string]string{"task-001.md": "Core execution", "task-002.md": "Follow-up summary"} {
		data, err := os.ReadFile(filepath.Join(ws, ".relay", "tasks", name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "# Task: "+title)
	}
}

func TestRunCommand_PlanFile(t *testing.T) {
	ws := testEnv(t)
	plan := filepath.Join(ws, "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`
tasks:
  - id: second
    description: runs after first
    dependencies: [first]
  - id: first
    description: runs first
`), 0644))

	out, err := runRelay(t, "run", "-w", ws, "-a", "mock", "--json", "--plan", plan)
	require.NoError(t, err, out)

	var started []string
	for _, e := range decodeEvents(t, out) {
		if e["type"] == string(orchestrator.EventTaskStarted) {
			started = append(started, e["data"].(map[string]any)["taskId"].(string))
		}
	}
	assert.Equal(t, []string{"first", "second"}, started)
}

func TestRunCommand_FailedRunReturnsError(t *testing.T) {
	ws := testEnv(t)
	plan := filepath.Join(ws, "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`
tasks:
  - id: orphan
    description: depends on nothing that exists
    dependencies: [ghost]
`), 0644))

	out, err := runRelay(t, "run", "-w", ws, "-a", "mock", "--plan", plan)
	require.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, "[FAILED]")
}

func TestRunCommand_ArgumentErrors(t *testing.T) {
	ws := testEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no prompt", []string{"run", "-w", ws}, "a prompt or --plan is required"},
		{"tui with json", []string{"run", "-w", ws, "--tui", "--json", "x"}, "mutually exclusive"},
		{"unknown agent", []string{"run", "-w", ws, "-a", "nope", "x"}, "unknown agent"},
		{"missing workspace", []string{"run", "-w", filepath.Join(ws, "missing"), "x"}, "workspace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRelay(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApproveCommands(t *testing.T) {
	ws := testEnv(t)
	box := inbox.ForWorkspace(ws)
	require.NoError(t, box.Ensure())
	require.NoError(t, box.Publish(orchestrator.ToolApprovalRequest{
		ID:       "tool-abc",
		TaskID:   "task-001",
		Agent:    models.AgentClaudeCode,
		ToolName: "Bash",
		Input:    map[string]any{"command": "make test"},
	}))

	out, err := runRelay(t, "approvals", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "tool-abc")
	assert.Contains(t, out, "Bash: make test")

	out, err = runRelay(t, "approve", "-w", ws, "tool-abc", "--deny")
	require.NoError(t, err)
	assert.Contains(t, out, "Denied tool-abc")

	data, err := os.ReadFile(filepath.Join(ws, ".relay", "approvals", "decisions", "tool-abc.json"))
	require.NoError(t, err)
	var d inbox.Decision
	require.NoError(t, json.Unmarshal(data, &d))
	assert.False(t, d.Allow)

	_, err = runRelay(t, "approve", "-w", ws, "tool-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
}

func TestApprovalsCommand_Empty(t *testing.T) {
	ws := testEnv(t)
	out, err := runRelay(t, "approvals", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending tool requests.")
}

func TestHistoryAndUsageCommands(t *testing.T) {
	ws := testEnv(t)

	out, err := runRelay(t, "history", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs yet")

	_, err = runRelay(t, "run", "-w", ws, "-a", "mock", "--json", "first run")
	require.NoError(t, err)

	out, err = runRelay(t, "history", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "first run")

	db, err := state.OpenProject(ws)
	require.NoError(t, err)
	runs, err := db.ListRuns(context.Background(), 1)
	db.Close()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	out, err = runRelay(t, "history", "-w", ws, runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "task-001")
	assert.Contains(t, out, "Summary:")

	_, err = runRelay(t, "history", "-w", ws, "plan-unknown")
	require.Error(t, err)

	out, err = runRelay(t, "history", "-w", ws, "--prune", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 run(s)")
	assert.Contains(t, out, "first run")

	out, err = runRelay(t, "usage", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "other")
	assert.Contains(t, out, "Last updated")

	out, err = runRelay(t, "usage", "-w", ws, "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = runRelay(t, "usage", "-w", ws)
	require.NoError(t, err)
	assert.NotContains(t, out, "Last updated")
}

func TestConfigCommand(t *testing.T) {
	testEnv(t)

	out, err := runRelay(t, "config", "mock.delay", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Set mock.delay = 5ms")

	// The env override from testEnv wins over the file.
	out, err = runRelay(t, "config", "mock.delay")
	require.NoError(t, err)
	assert.Equal(t, "1ms\n", out)

	out, err = runRelay(t, "config", "agents.planner")
	require.NoError(t, err)
	assert.Equal(t, "(not set)\n", out)

	_, err = runRelay(t, "config", "no.such")
	require.Error(t, err)

	_, err = runRelay(t, "config", "agents.active", "nope")
	require.Error(t, err)

	out, err = runRelay(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "agents.active: claude-code")
	assert.Contains(t, out, "# user config:")
}

func TestVersionCommand(t *testing.T) {
	out, err := runRelay(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "relay version "), out)
}
