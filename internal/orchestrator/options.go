package orchestrator

import (
	"time"

	"github.com/ShayCichocki/relay/pkg/models"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
type RequiredConfig struct {
	// Workspace is the directory tasks operate in.
	Workspace string
	// Adapters resolves agent tags to backends.
	Adapters AdapterLookup
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	agent           models.AgentType
	plannerAgent    models.AgentType
	persister       Persister
	usage           UsageRecorder
	logger          *DebugLogger
	bus             *EventBus
	approvalTimeout time.Duration
	planner         *Planner
	locks           *WorkspaceLocks
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		agent:           models.AgentClaudeCode,
		approvalTimeout: DefaultApprovalTimeout,
	}
}

// WithAgent sets the agent that executes plan tasks.
func WithAgent(a models.AgentType) Option {
	return func(o *orchestratorOptions) {
		if a != "" {
			o.agent = a
		}
	}
}

// WithPlannerAgent enables a planning pass on agent before the default plan
// is used. An empty tag disables the pass.
func WithPlannerAgent(a models.AgentType) Option {
	return func(o *orchestratorOptions) { o.plannerAgent = a }
}

// WithPersister sets where tasks and results are written.
func WithPersister(p Persister) Option {
	return func(o *orchestratorOptions) { o.persister = p }
}

// WithUsageRecorder sets the usage accounting sink.
func WithUsageRecorder(u UsageRecorder) Option {
	return func(o *orchestratorOptions) { o.usage = u }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventBus shares an existing bus, letting callers subscribe before
// the orchestrator is built.
func WithEventBus(b *EventBus) Option {
	return func(o *orchestratorOptions) { o.bus = b }
}

// WithApprovalTimeout overrides how long tool requests wait for a decision.
func WithApprovalTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) {
		if d > 0 {
			o.approvalTimeout = d
		}
	}
}

// WithPlanner injects a planner, mainly for tests.
func WithPlanner(p *Planner) Option {
	return func(o *orchestratorOptions) { o.planner = p }
}

// WithWorkspaceLocks replaces the process-wide workspace lock table. Runs
// only exclude each other when they share a table.
func WithWorkspaceLocks(l *WorkspaceLocks) Option {
	return func(o *orchestratorOptions) { o.locks = l }
}
