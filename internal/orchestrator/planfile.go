package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/relay/pkg/models"
)

// planFile is the on-disk structure of a plan file. Either form is accepted:
//
//	tasks:
//	  - id: build
//	    description: ...
//
// or a bare list of tasks.
type planFile struct {
	Agent string         `yaml:"agent"`
	Tasks []planFileTask `yaml:"tasks"`
}

type planFileTask struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Agent          string   `yaml:"agent"`
	Description    string   `yaml:"description"`
	Dependencies   []string `yaml:"dependencies"`
	Workspace      string   `yaml:"workspace"`
	InputContext   []string `yaml:"inputContext"`
	ExpectedOutput []string `yaml:"expectedOutput"`
}

// LoadPlanFile reads a YAML task list. Tasks without an agent use the file's
// agent, then defaultAgent. Relative workspaces resolve against workspace.
func LoadPlanFile(path string, defaultAgent models.AgentType, workspace string) ([]*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlanFile(data, defaultAgent, workspace)
}

// ParsePlanFile parses YAML plan file contents. See LoadPlanFile.
func ParsePlanFile(data []byte, defaultAgent models.AgentType, workspace string) ([]*models.Task, error) {
	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		// Fall back to a bare list.
		var list []planFileTask
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return nil, fmt.Errorf("parse plan file: %w", err)
		}
		pf.Tasks = list
	}
	if len(pf.Tasks) == 0 {
		return nil, fmt.Errorf("parse plan file: no tasks defined")
	}

	fileAgent := defaultAgent
	if pf.Agent != "" {
		fileAgent = models.AgentType(pf.Agent)
	}

	tasks := make([]*models.Task, 0, len(pf.Tasks))
	seen := make(map[string]bool, len(pf.Tasks))
	for i, ft := range pf.Tasks {
		id := strings.TrimSpace(ft.ID)
		if id == "" {
			id = fmt.Sprintf("task-%03d", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("parse plan file: duplicate task id %q", id)
		}
		seen[id] = true

		agent := fileAgent
		if ft.Agent != "" {
			agent = models.AgentType(ft.Agent)
		}

		ws := workspace
		if ft.Workspace != "" {
			ws = ft.Workspace
			if !filepath.IsAbs(ws) {
				ws = filepath.Join(workspace, ws)
			}
		}

		title := ft.Title
		if title == "" {
			title = id
		}
		deps := ft.Dependencies
		if deps == nil {
			deps = []string{}
		}

		tasks = append(tasks, &models.Task{
			ID:             id,
			Title:          title,
			Agent:          agent,
			Status:         models.TaskStatusPending,
			Dependencies:   deps,
			Workspace:      ws,
			Description:    ft.Description,
			InputContext:   ft.InputContext,
			ExpectedOutput: ft.ExpectedOutput,
		})
	}
	return tasks, nil
}
