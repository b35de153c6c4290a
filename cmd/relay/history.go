package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/relay/internal/state"
)

var (
	historyLimit int
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs",
	Long: `List recent runs in this workspace, newest first.
With a run id, show that run's tasks, summary and errors.
With --prune, delete runs older than the given age first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openState(cfg, workspace)
		if err != nil {
			return err
		}
		defer db.Close()

		if historyPrune > 0 {
			n, err := db.PurgeOldRuns(cmd.Context(), historyPrune)
			if err != nil {
				return fmt.Errorf("prune runs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) older than %s.\n", n, historyPrune)
		}

		if len(args) == 1 {
			return showRun(cmd, db, args[0])
		}

		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs yet. Start one with 'relay run <prompt>'.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tDURATION\tPROMPT")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.ID, statusText(r.Status), r.StartedAt.Local().Format("2006-01-02 15:04"),
				runDuration(r), truncateText(r.Prompt, 50))
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete runs older than this age (e.g. 720h)")
}

func showRun(cmd *cobra.Command, db *state.DB, id string) error {
	run, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	tasks, err := db.ListRunTasks(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run: %s\n", run.ID)
	fmt.Fprintf(out, "  Prompt: %s\n", run.Prompt)
	fmt.Fprintf(out, "  Workspace: %s\n", run.Workspace)
	fmt.Fprintf(out, "  Status: %s\n", statusText(run.Status))
	fmt.Fprintf(out, "  Started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Duration: %s\n", runDuration(*run))

	if len(tasks) > 0 {
		fmt.Fprintln(out, "\nTasks:")
		for _, t := range tasks {
			agent := string(t.Agent)
			if agent == "" {
				agent = "-"
			}
			fmt.Fprintf(out, "  %d. %-24s %-10s %s\n", t.Position+1, t.TaskID, t.Status, agent)
		}
	}
	if run.Summary != "" {
		fmt.Fprintln(out, "\nSummary:")
		for _, l := range strings.Split(run.Summary, "\n") {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}
	if len(run.Errors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, e := range run.Errors {
			fmt.Fprintf(out, "  %s\n", failColor.Sprint(e))
		}
	}
	return nil
}

func statusText(s state.RunStatus) string {
	switch s {
	case state.RunCompleted:
		return successColor.Sprint(string(s))
	case state.RunFailed:
		return failColor.Sprint(string(s))
	default:
		return warnColor.Sprint(string(s))
	}
}

func runDuration(r state.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return formatDuration(r.FinishedAt.Sub(r.StartedAt))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func truncateText(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
