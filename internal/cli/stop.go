package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running watcher",
	Long:  `Stops the running 'folio watch' process by sending a SIGTERM signal based on the configured PID file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pid, err := signalWatcher(cfg.Application.PIDFilePath, syscall.SIGTERM)
		if err != nil {
			return err
		}
		// The PID file is removed by the watcher during its graceful shutdown.
		fmt.Fprintln(cmd.OutOrStdout(), infoStyle.Render("→")+fmt.Sprintf(" SIGTERM sent to PID %d", pid))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
