package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Ask a running watcher to rebuild now",
	Long: `Sends SIGHUP to the running 'folio watch' process, which queues a full
rebuild as if a source file had changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pid, err := signalWatcher(cfg.Application.PIDFilePath, syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), infoStyle.Render("→")+fmt.Sprintf(" rebuild requested from PID %d", pid))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
