package orchestrator

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ShayCichocki/relay/pkg/models"
)

func TestParsePlanFile(t *testing.T) {
	data := []byte(`
agent: codex
tasks:
  - id: build
    title: Build
    description: go build ./...
  - id: docs
    agent: mock
    workspace: docs
    description: write docs
    dependencies: [build]
`)

	tasks, err := ParsePlanFile(data, models.AgentClaudeCode, "/repo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Agent != models.AgentCodex || tasks[0].Workspace != "/repo" {
		t.Errorf("task build: agent=%s workspace=%s", tasks[0].Agent, tasks[0].Workspace)
	}
	if tasks[1].Agent != models.AgentMock || tasks[1].Workspace != filepath.Join("/repo", "docs") {
		t.Errorf("task docs: agent=%s workspace=%s", tasks[1].Agent, tasks[1].Workspace)
	}
	if !reflect.DeepEqual(tasks[1].Dependencies, []string{"build"}) {
		t.Errorf("deps = %v", tasks[1].Dependencies)
	}
	if tasks[1].Title != "docs" {
		t.Errorf("missing title should default to id, got %q", tasks[1].Title)
	}
}

func TestParsePlanFile_BareList(t *testing.T) {
	tasks, err := ParsePlanFile([]byte("- description: one\n- description: two\n  dependencies: [task-001]\n"), models.AgentMock, "/w")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "task-001" || tasks[1].ID != "task-002" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if tasks[0].Agent != models.AgentMock {
		t.Errorf("default agent not applied: %s", tasks[0].Agent)
	}
}

func TestParsePlanFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "tasks: []\n"},
		{"duplicate ids", "tasks:\n  - id: a\n  - id: a\n"},
		{"not yaml", "tasks: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlanFile([]byte(tt.data), models.AgentMock, ""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("tasks:\n  - id: only\n"), 0644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	tasks, err := LoadPlanFile(path, models.AgentMock, "/w")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "only" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}

	if _, err := LoadPlanFile(filepath.Join(t.TempDir(), "missing.yaml"), models.AgentMock, ""); err == nil {
		t.Error("expected error for missing file")
	}
}
