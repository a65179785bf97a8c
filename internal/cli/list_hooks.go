package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pbaity/folio/pkg/models"
	"github.com/spf13/cobra"
)

var listHooksCmd = &cobra.Command{
	Use:   "list-hooks",
	Short: "List configured post-build hooks",
	Long:  `Displays a summary of all post-build hooks defined in the configuration file, in the order they run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printHooks(cmd.OutOrStdout(), cfg.Hooks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listHooksCmd)
}

func printHooks(w io.Writer, hooks []models.HookConfig) {
	fmt.Fprintln(w, "--- Configured Hooks ---")
	if len(hooks) == 0 {
		fmt.Fprintln(w, "No hooks configured.")
		return
	}
	for i, h := range hooks {
		fmt.Fprintf(w, "[%d] ID: %s\n", i, h.ID)
		if h.Description != "" {
			fmt.Fprintf(w, "    Description: %s\n", h.Description)
		}
		if lines := strings.Count(strings.TrimSpace(h.Script), "\n"); lines > 0 {
			fmt.Fprintf(w, "    Script: (%d lines)\n", lines+1)
		} else {
			fmt.Fprintf(w, "    Script: %s\n", strings.TrimSpace(h.Script))
		}
		if h.Timeout.Duration > 0 {
			fmt.Fprintf(w, "    Timeout: %s\n", h.Timeout.Duration)
		}
		fmt.Fprintln(w, "---")
	}
}
