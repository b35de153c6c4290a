package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/relay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify relay configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/relay/config.yaml
Project-specific overrides can be placed in .relay.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if len(args) == 2 {
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], args[1])
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		values := cfg.Values()

		if len(args) == 1 {
			v, ok := values[args[0]]
			if !ok {
				return fmt.Errorf("unknown configuration key: %s", args[0])
			}
			fmt.Fprintln(out, displayValue(v))
			return nil
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s: %s\n", k, displayValue(values[k]))
		}
		for _, p := range []config.Provider{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini} {
			fmt.Fprintf(out, "# %s key source: %s\n", p, config.GetAPIKeySource(cfg, p))
		}
		fmt.Fprintf(out, "# user config: %s\n", config.GetUserConfigPath())
		if p := config.GetProjectConfigPath(); p != "" {
			fmt.Fprintf(out, "# project config: %s\n", p)
		}
		return nil
	},
}

func displayValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
