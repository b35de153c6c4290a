package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/relay/internal/state"
)

var usageReset bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show work done per provider",
	Long: `Show the number of tasks, characters sent and received, and agent time
spent per provider in this workspace. --reset clears the totals.`,
	Args: cobra.NoArgs,
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

		store := state.NewUsageStore(db)
		out := cmd.OutOrStdout()

		if usageReset {
			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Usage totals cleared.")
			return nil
		}

		summary, err := store.Summary(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "PROVIDER\tTASKS\tINPUT CHARS\tOUTPUT CHARS\tAGENT TIME\t")
		for _, p := range state.Providers {
			st := summary.Providers[p]
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n",
				p, st.Tasks, formatNumber(st.InputChars), formatNumber(st.OutputChars), formatDuration(st.Duration))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if summary.LastUpdated != nil {
			fmt.Fprintf(out, "\nLast updated %s\n", summary.LastUpdated.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	usageCmd.Flags().BoolVar(&usageReset, "reset", false, "Clear all usage totals")
}
