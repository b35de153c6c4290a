package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/relay/internal/config"
	"github.com/ShayCichocki/relay/internal/inbox"
	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/internal/state"
	"github.com/ShayCichocki/relay/internal/tui"
	"github.com/ShayCichocki/relay/pkg/models"
)

var (
	runAgent   string
	runPlanner string
	runPlan    string
	runTUI     bool
	runJSON    bool
)

// errRunFailed is returned when the run ends in the failed state. Details
// have already been printed by the renderer.
var errRunFailed = errors.New("run failed")

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Plan a prompt and run its tasks",
	Long: `Plan a prompt into tasks and run them one at a time in dependency order.

Without --plan the default plan is used: a core execution task for the first
line of the prompt, then a follow-up summary task for the remaining lines
that depends on it. With --planner, an agent is first asked for a plan and the
default plan is used only if its answer cannot be parsed. With --plan, tasks
are read from a YAML or JSON plan file and the prompt is optional.

Output:
  (default)  coloured console lines
  --json     one JSON event per line
  --tui      live view; answer tool requests with y/n`,
	RunE: runPrompt,
}

func init() {
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "Agent for plan tasks (claude-code, codex, gemini-cli, mock)")
	runCmd.Flags().StringVar(&runPlanner, "planner", "", "Agent for the planning pass (empty disables it)")
	runCmd.Flags().StringVar(&runPlan, "plan", "", "Run tasks from a plan file instead of planning")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live terminal view")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print events as JSON lines")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && runPlan == "" {
		return errors.New("a prompt or --plan is required")
	}
	if runTUI && runJSON {
		return errors.New("--tui and --json are mutually exclusive")
	}

	workspace, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := orchestrator.NewDebugLoggerForWorkspace(workspace)
	defer logger.Close()

	persister, err := openArtifacts(ctx, cfg, workspace)
	if err != nil {
		return err
	}
	db, err := openState(cfg, workspace)
	if err != nil {
		return err
	}
	defer db.Close()

	active := models.AgentType(cfg.Agents.Active)
	registry := buildRegistry(cfg, logger)
	if a, ok := registry.Get(active); ok {
		if avail, err := a.IsAvailable(ctx); !avail {
			msg := fmt.Sprintf("agent %s does not look available", active)
			if err != nil {
				msg += ": " + err.Error()
			}
			warnColor.Fprintln(cmd.ErrOrStderr(), "Warning: "+msg)
		}
	}

	var tasks []*models.Task
	if runPlan != "" {
		tasks, err = orchestrator.LoadPlanFile(runPlan, active, workspace)
		if err != nil {
			return err
		}
		if prompt == "" {
			prompt = "plan " + runPlan
		}
	}

	bus := orchestrator.NewEventBus(logger)
	orch := orchestrator.New(
		orchestrator.RequiredConfig{
			Workspace: workspace,
			Adapters:  registry,
		},
		orchestrator.WithAgent(active),
		orchestrator.WithPlannerAgent(models.AgentType(cfg.Agents.Planner)),
		orchestrator.WithPersister(persister),
		orchestrator.WithUsageRecorder(state.NewUsageStore(db)),
		orchestrator.WithLogger(logger),
		orchestrator.WithEventBus(bus),
		orchestrator.WithApprovalTimeout(cfg.Approval.Timeout),
	)

	recorder := state.NewRecorder(db, prompt, workspace)
	defer recorder.Attach(bus)()

	box := inbox.ForWorkspace(workspace)
	if err := box.Ensure(); err != nil {
		return err
	}
	defer box.Attach(bus)()
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := box.Watch(watchCtx, orch.Approvals()); err != nil {
			log.Printf("[inbox] approvals from 'relay approve' are unavailable: %v", err)
		}
	}()

	execute := func(ctx context.Context) *orchestrator.RunOutcome {
		if tasks != nil {
			return orch.RunTasks(ctx, tasks)
		}
		return orch.Run(ctx, prompt)
	}

	var outcome *orchestrator.RunOutcome
	switch {
	case runTUI:
		// Log output corrupts the alt screen.
		orig := log.Writer()
		log.SetOutput(io.Discard)
		outcome, err = tui.Run(ctx, prompt, bus, orch.Approvals().Resolve, execute)
		log.SetOutput(orig)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), outcome)

	case runJSON:
		off := bus.SubscribeAll(newJSONRenderer(cmd.OutOrStdout()).Handle)
		outcome = execute(ctx)
		off()

	default:
		off := bus.SubscribeAll(newConsoleRenderer(cmd.OutOrStdout()).Handle)
		outcome = execute(ctx)
		off()
	}

	if outcome.Status != models.TaskStatusCompleted {
		return errRunFailed
	}
	return nil
}

// applyRunFlags overrides configured agents with explicit flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("agent") {
		cfg.Agents.Active = runAgent
	}
	if cmd.Flags().Changed("planner") {
		cfg.Agents.Planner = runPlanner
	}
	return cfg.Validate()
}

// printOutcome reports a run after the TUI has closed.
func printOutcome(w io.Writer, outcome *orchestrator.RunOutcome) {
	if outcome == nil {
		return
	}
	if outcome.Status == models.TaskStatusCompleted {
		successColor.Fprintf(w, "Run %s completed\n", outcome.PlanID)
	} else {
		failColor.Fprintf(w, "Run %s failed\n", outcome.PlanID)
		for _, e := range outcome.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	for _, l := range strings.Split(outcome.Summary, "\n") {
		if l != "" {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
}
