// Package graph provides the dependency graph used to schedule plan tasks.
package graph

import (
	"errors"
	"sync"

	"github.com/ShayCichocki/relay/pkg/models"
)

// ErrDuplicateTask is returned by Add when a task id is already present.
var ErrDuplicateTask = errors.New("duplicate task id")

// TaskGraph holds a plan's tasks keyed by id. Tasks are nodes, and each
// task's Dependencies are "blocked by" edges. The graph never rejects
// cycles or unknown dependencies; such tasks simply never become ready.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// order preserves insertion order for deterministic scheduling.
	order []string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates an empty graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:    make(map[string]*models.Task),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// FromTasks builds a graph from tasks in order. A repeated id replaces the
// earlier task but keeps its original position.
func FromTasks(tasks []*models.Task) *TaskGraph {
	g := New()
	for _, t := range tasks {
		if err := g.Add(t); err != nil {
			g.mu.Lock()
			g.nodes[t.ID] = t
			g.mu.Unlock()
		}
	}
	return g
}

// SetDebugLog sets the debug logging function.
func (g *TaskGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Add inserts a task. The task pointer is shared, so status changes made by
// the executor are visible to the graph.
func (g *TaskGraph) Add(task *models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[task.ID]; exists {
		return ErrDuplicateTask
	}
	g.debugLog("[graph.Add] id=%s title=%q deps=%v", task.ID, task.Title, task.Dependencies)
	g.nodes[task.ID] = task
	g.order = append(g.order, task.ID)
	return nil
}

// Get returns the task for a given ID, or nil if not found.
func (g *TaskGraph) Get(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// List returns all tasks in insertion order.
func (g *TaskGraph) List() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, g.nodes[id])
	}
	return tasks
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// HasPending reports whether any task is still pending.
func (g *TaskGraph) HasPending() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		if g.nodes[id].Status == models.TaskStatusPending {
			return true
		}
	}
	return false
}

// ReadyTasks returns pending tasks whose dependencies all exist in the graph
// and are completed, in insertion order. A failed dependency never satisfies.
func (g *TaskGraph) ReadyTasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.Task
	for _, id := range g.order {
		task := g.nodes[id]
		if task.Status != models.TaskStatusPending {
			continue
		}
		if g.depsSatisfiedLocked(task) {
			ready = append(ready, task)
		} else {
			g.debugLog("[graph.ReadyTasks] task %s: not ready, deps=%v", id, task.Dependencies)
		}
	}

	g.debugLog("[graph.ReadyTasks] returning %d ready tasks", len(ready))
	return ready
}

func (g *TaskGraph) depsSatisfiedLocked(task *models.Task) bool {
	for _, depID := range task.Dependencies {
		dep, exists := g.nodes[depID]
		if !exists || dep.Status != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// Dependents returns the IDs of tasks that depend on the given task.
func (g *TaskGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.nodes[id].Dependencies {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// IDsWithStatus returns ids of tasks currently in status, in insertion order.
func (g *TaskGraph) IDsWithStatus(status models.TaskStatus) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for _, id := range g.order {
		if g.nodes[id].Status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// MissingDependencies maps task id to the dependency ids that are not in the
// graph. Tasks with no missing dependencies are omitted.
func (g *TaskGraph) MissingDependencies() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	missing := make(map[string][]string)
	for _, id := range g.order {
		for _, depID := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[depID]; !ok {
				missing[id] = append(missing[id], depID)
			}
		}
	}
	return missing
}

// FindCycle returns one dependency cycle as a path whose first and last
// elements are the same id, or nil when the graph is acyclic.
// Uses depth-first search with coloring to detect back edges.
func (g *TaskGraph) FindCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[depID]; !ok {
				continue
			}
			switch colors[depID] {
			case 1:
				// Back edge: the cycle is the stack suffix starting at depID.
				for i, s := range stack {
					if s == depID {
						cycle = append(append([]string{}, stack[i:]...), depID)
						break
					}
				}
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}
