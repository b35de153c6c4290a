package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ShayCichocki/relay/internal/graph"
	"github.com/ShayCichocki/relay/pkg/models"
)

// ErrPlanParse is returned when planner output cannot be turned into tasks.
var ErrPlanParse = errors.New("parse plan")

// PlanningTaskID is the id of the synthetic task sent to the planner agent.
const PlanningTaskID = "planning"

// planningPrompt asks a planner agent for a dependency-annotated task list.
const planningPrompt = `Break this request into a short ordered list of tasks. Each task must be small enough for a single agent to finish in one session.

Request:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "id": "task-001",
    "title": "Short task title",
    "description": "Detailed instruction for the agent",
    "dependencies": ["id or title of a task that must finish first"],
    "expectedOutput": ["What the task should produce"]
  }
]

Guidelines:
- Tasks run one at a time in dependency order
- Only add dependencies when a task needs another task's result
- Use an empty array [] for dependencies if there are none`

// plannedTask is the JSON structure returned by a planner agent for one task.
type plannedTask struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Dependencies   []string `json:"dependencies"`
	DependsOn      []string `json:"depends_on"`
	InputContext   []string `json:"inputContext"`
	ExpectedOutput []string `json:"expectedOutput"`
}

// Planner turns a prompt or a task list into a Plan and its TaskGraph.
type Planner struct {
	now func() time.Time
}

// NewPlanner creates a Planner.
func NewPlanner() *Planner {
	return &Planner{now: time.Now}
}

func (p *Planner) newPlan(tasks []*models.Task) (*models.Plan, *graph.TaskGraph) {
	now := p.now().UTC()
	plan := &models.Plan{
		ID:        "plan-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CreatedAt: now,
		Tasks:     tasks,
	}
	return plan, graph.FromTasks(tasks)
}

// CreatePlan builds the default two-task plan from a free-form prompt. The
// first non-empty line becomes the root task and the remaining lines become a
// follow-up that depends on it.
func (p *Planner) CreatePlan(prompt string, agent models.AgentType, workspace string) (*models.Plan, *graph.TaskGraph) {
	var lines []string
	for _, line := range strings.Split(prompt, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	primary := "No description provided."
	if len(lines) > 0 {
		primary = lines[0]
	}
	followUp := "Summarize results and propose next steps."
	if len(lines) > 1 {
		followUp = strings.Join(lines[1:], " ")
	}

	core := &models.Task{
		ID:             "task-001",
		Title:          "Core execution",
		Agent:          agent,
		Status:         models.TaskStatusPending,
		Dependencies:   []string{},
		Workspace:      workspace,
		Description:    primary,
		InputContext:   []string{"User prompt provided via CLI", fmt.Sprintf("Prompt lines: %d", len(lines))},
		ExpectedOutput: []string{"Create a result summary", "Verify core pipeline flow"},
	}
	summary := &models.Task{
		ID:             "task-002",
		Title:          "Follow-up summary",
		Agent:          agent,
		Status:         models.TaskStatusPending,
		Dependencies:   []string{"task-001"},
		Workspace:      workspace,
		Description:    followUp,
		InputContext:   []string{"Depends on task-001 result"},
		ExpectedOutput: []string{"Summarize task-001 output", "List next steps"},
	}

	return p.newPlan([]*models.Task{core, summary})
}

// PlanFromTasks wraps an already-ordered task list into a plan unchanged.
// Dependencies are not validated; unsatisfiable ones surface as a stall.
func (p *Planner) PlanFromTasks(tasks []*models.Task) (*models.Plan, *graph.TaskGraph) {
	return p.newPlan(tasks)
}

// PlanningTask builds the task handed to a planner agent.
func (p *Planner) PlanningTask(prompt string, agent models.AgentType, workspace string) *models.Task {
	return &models.Task{
		ID:             PlanningTaskID,
		Title:          "Plan request",
		Agent:          agent,
		Status:         models.TaskStatusPending,
		Dependencies:   []string{},
		Workspace:      workspace,
		Description:    fmt.Sprintf(planningPrompt, prompt),
		InputContext:   []string{"User prompt provided via CLI"},
		ExpectedOutput: []string{"JSON array of tasks"},
	}
}

// ParsePlanResponse extracts the first JSON array from planner output and
// converts it into pending tasks for agent. Dependencies may name task ids or
// titles; references that match neither are kept as written.
func ParsePlanResponse(response string, agent models.AgentType, workspace string) ([]*models.Task, error) {
	// Find the JSON array in the response (the agent might include extra text)
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("%w: no JSON array found in response", ErrPlanParse)
	}

	var planned []plannedTask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &planned); err != nil {
		return nil, fmt.Errorf("%w: unmarshal JSON: %v", ErrPlanParse, err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("%w: empty task list returned", ErrPlanParse)
	}

	tasks := make([]*models.Task, len(planned))
	ids := make(map[string]bool, len(planned))
	titleToID := make(map[string]string, len(planned))

	for i, pt := range planned {
		id := strings.TrimSpace(pt.ID)
		if id == "" || ids[id] {
			id = fmt.Sprintf("task-%03d", i+1)
		}
		ids[id] = true

		title := strings.TrimSpace(pt.Title)
		if title == "" {
			title = fmt.Sprintf("Task %d", i+1)
		}
		if _, seen := titleToID[title]; !seen {
			titleToID[title] = id
		}

		description := strings.TrimSpace(pt.Description)
		if description == "" {
			description = title
		}

		tasks[i] = &models.Task{
			ID:             id,
			Title:          title,
			Agent:          agent,
			Status:         models.TaskStatusPending,
			Dependencies:   []string{},
			Workspace:      workspace,
			Description:    description,
			InputContext:   pt.InputContext,
			ExpectedOutput: pt.ExpectedOutput,
		}
	}

	for i, pt := range planned {
		deps := pt.Dependencies
		if len(deps) == 0 {
			deps = pt.DependsOn
		}
		for _, dep := range deps {
			dep = strings.TrimSpace(dep)
			switch {
			case dep == "":
				continue
			case ids[dep]:
			case titleToID[dep] != "":
				dep = titleToID[dep]
			}
			tasks[i].Dependencies = append(tasks[i].Dependencies, dep)
		}
	}

	return tasks, nil
}
