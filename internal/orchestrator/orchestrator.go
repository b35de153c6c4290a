package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/relay/internal/graph"
	"github.com/ShayCichocki/relay/pkg/models"
)

// RunOutcome is what a run reports once it ends.
type RunOutcome struct {
	PlanID  string
	Status  models.TaskStatus
	Summary string
	Errors  []string
	Results []*models.TaskResult
	// Err is a *StallError when the graph stalled, the context error when
	// the run was cancelled, and nil otherwise.
	Err error
}

// Orchestrator builds a plan, executes its tasks one at a time in dependency
// order and reports the outcome on its event bus.
type Orchestrator struct {
	workspace    string
	agent        models.AgentType
	plannerAgent models.AgentType

	adapters AdapterLookup
	bus      *EventBus
	gate     *ToolApprovalGate
	planner  *Planner
	executor *Executor
	persist  Persister
	logger   *DebugLogger
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = NopLogger()
	}
	if o.bus == nil {
		o.bus = NewEventBus(o.logger)
	}
	if o.planner == nil {
		o.planner = NewPlanner()
	}
	gate := NewToolApprovalGate(o.bus, o.approvalTimeout, o.logger)
	executor := NewExecutor(o.bus, req.Adapters, gate, o.persister, o.usage, o.logger)
	if o.locks != nil {
		executor.locks = o.locks
	}

	return &Orchestrator{
		workspace:    req.Workspace,
		agent:        o.agent,
		plannerAgent: o.plannerAgent,
		adapters:     req.Adapters,
		bus:          o.bus,
		gate:         gate,
		planner:      o.planner,
		executor:     executor,
		persist:      o.persister,
		logger:       o.logger,
	}
}

// Events returns the bus every run publishes on.
func (o *Orchestrator) Events() *EventBus {
	return o.bus
}

// Approvals returns the tool approval gate so front ends can resolve requests.
func (o *Orchestrator) Approvals() *ToolApprovalGate {
	return o.gate
}

// Run plans prompt and drives the plan to completion. The default two-task
// plan is used unless a planner agent is configured and its output parses.
func (o *Orchestrator) Run(ctx context.Context, prompt string) *RunOutcome {
	var plan *models.Plan
	var g *graph.TaskGraph

	if o.plannerAgent != "" {
		tasks, err := o.planWithAgent(ctx, prompt)
		if err != nil {
			log.Printf("[orchestrator] planning pass failed, using default plan: %v", err)
			o.logger.Log("[orchestrator] planning pass failed: %v", err)
		} else {
			plan, g = o.planner.PlanFromTasks(tasks)
		}
	}
	if plan == nil {
		plan, g = o.planner.CreatePlan(prompt, o.agent, o.workspace)
	}

	return o.drive(ctx, plan, g)
}

// RunTasks drives a caller-supplied task list without a planning step.
func (o *Orchestrator) RunTasks(ctx context.Context, tasks []*models.Task) *RunOutcome {
	plan, g := o.planner.PlanFromTasks(tasks)
	return o.drive(ctx, plan, g)
}

func (o *Orchestrator) drive(ctx context.Context, plan *models.Plan, g *graph.TaskGraph) *RunOutcome {
	g.SetDebugLog(o.logger.Func())
	o.logger.Log("[orchestrator] plan %s created with %d tasks", plan.ID, len(plan.Tasks))
	o.bus.Emit(NewEvent(EventPlanCreated, PlanCreated{PlanID: plan.ID, TaskIDs: plan.TaskIDs()}))

	if o.persist != nil {
		for _, t := range plan.Tasks {
			if _, err := o.persist.WriteTask(ctx, t); err != nil {
				log.Printf("[orchestrator] WARNING: write task %s: %v", t.ID, err)
				o.logger.Log("[orchestrator] write task %s: %v", t.ID, err)
			}
		}
	}

	var results []*models.TaskResult
	for g.HasPending() {
		if err := ctx.Err(); err != nil {
			return o.fail(plan, results, fmt.Sprintf("Run cancelled: %v", err), err)
		}

		ready := g.ReadyTasks()
		if len(ready) == 0 {
			stall := classifyStall(g, results)
			o.logger.Log("[orchestrator] stalled: %v", stall)
			return o.fail(plan, results, stall.Error(), stall)
		}

		// One at a time: tasks in a ready set may share a workspace.
		for _, task := range ready {
			if ctx.Err() != nil {
				break
			}
			results = append(results, o.executor.Execute(ctx, task))
		}
	}

	agg := Aggregate(results)
	outcome := &RunOutcome{
		PlanID:  plan.ID,
		Summary: agg.Summary,
		Errors:  agg.Errors,
		Results: results,
	}
	if len(agg.Errors) > 0 {
		outcome.Status = models.TaskStatusFailed
		o.bus.Emit(NewEvent(EventRunFailed, RunFailed{PlanID: plan.ID, Errors: agg.Errors}))
	} else {
		outcome.Status = models.TaskStatusCompleted
		o.bus.Emit(NewEvent(EventRunCompleted, RunCompleted{PlanID: plan.ID, Summary: agg.Summary}))
	}
	o.logger.Log("[orchestrator] plan %s finished: %s", plan.ID, outcome.Status)
	return outcome
}

// fail ends a run early, merging msg into the aggregated errors.
func (o *Orchestrator) fail(plan *models.Plan, results []*models.TaskResult, msg string, cause error) *RunOutcome {
	agg := Aggregate(results)
	errs := append(agg.Errors, msg)

	summary := agg.Summary
	if summary == "" {
		summary = msg
	}

	o.bus.Emit(NewEvent(EventRunFailed, RunFailed{PlanID: plan.ID, Errors: errs}))
	return &RunOutcome{
		PlanID:  plan.ID,
		Status:  models.TaskStatusFailed,
		Summary: summary,
		Errors:  errs,
		Results: results,
		Err:     cause,
	}
}

// planWithAgent asks the planner agent for a task list. The planning task
// runs through the executor like any other task but emits no task events.
func (o *Orchestrator) planWithAgent(ctx context.Context, prompt string) ([]*models.Task, error) {
	task := o.planner.PlanningTask(prompt, o.plannerAgent, o.workspace)

	result, err := o.executor.invoke(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("run planner %s: %w", o.plannerAgent, err)
	}
	if result == nil || result.Status != models.TaskStatusCompleted {
		reason := "no result"
		if result != nil {
			reason = strings.Join(result.Errors, "; ")
		}
		return nil, fmt.Errorf("run planner: %s", reason)
	}

	return ParsePlanResponse(result.Summary, o.agent, o.workspace)
}
