package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/relay/internal/inbox"
)

var approveDeny bool

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Answer a pending tool request of a running relay",
	Long: `Allow (or with --deny, deny) a pending tool request.

The running relay in the same workspace picks the decision up immediately.
List pending requests with 'relay approvals'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace()
		if err != nil {
			return err
		}
		id := args[0]
		if err := inbox.ForWorkspace(workspace).Decide(id, !approveDeny); err != nil {
			if errors.Is(err, inbox.ErrUnknownRequest) {
				return fmt.Errorf("%s is not pending (already decided, timed out or never requested)", id)
			}
			return err
		}
		verb := "Allowed"
		if approveDeny {
			verb = "Denied"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, id)
		return nil
	},
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List pending tool requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := resolveWorkspace()
		if err != nil {
			return err
		}
		reqs, err := inbox.ForWorkspace(workspace).ListPending()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reqs) == 0 {
			fmt.Fprintln(out, "No pending tool requests.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTASK\tAGENT\tTOOL\tWAITING")
		for _, r := range reqs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\t%s\n",
				r.ID, r.TaskID, r.Agent, r.ToolName, inputHint(r.Input),
				formatDuration(time.Since(r.CreatedAt)))
		}
		return tw.Flush()
	},
}

func init() {
	approveCmd.Flags().BoolVar(&approveDeny, "deny", false, "Deny instead of allow")
}
