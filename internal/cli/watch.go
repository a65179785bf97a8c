package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/queue"
	"github.com/pbaity/folio/internal/watcher"
	"github.com/pbaity/folio/internal/worker"
	"github.com/pbaity/folio/pkg/models"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build the site and rebuild it on every change",
	Long: `Builds the site once, then watches the source tree and rebuilds after
each burst of changes. Runs in the foreground until interrupted (Ctrl+C),
'folio stop' is used, or SIGTERM is received. SIGHUP or 'folio rebuild'
forces a rebuild.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch runs the watch loop until ctx is done. Build failures are reported
// and the loop keeps waiting for the next change.
func runWatch(ctx context.Context, cfg *models.Config, out io.Writer) error {
	log := logger.L()

	// SIGHUP must be caught before the PID file is written.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	release, err := acquirePIDFile(cfg.Application.PIDFilePath)
	if err != nil {
		return err
	}
	defer release()

	// --- Initialize Core Components ---
	eventQueue := queue.NewEventQueue(cfg.Application.QueueCapacity)
	proc, b, err := newProcessor(cfg, out)
	if err != nil {
		return err
	}
	runner := worker.NewRunner(cfg.Watch, eventQueue, proc)
	watcherService, err := watcher.NewService(cfg.Site, eventQueue)
	if err != nil {
		return err
	}

	// --- Start Services ---
	log.Info("Starting services...")
	if err := eventQueue.Start(); err != nil {
		return fmt.Errorf("failed to start event queue: %w", err)
	}
	if err := watcherService.Start(); err != nil {
		_ = eventQueue.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	requestRebuild(eventQueue)
	runner.Start()
	fmt.Fprintln(out, infoStyle.Render("● watching")+" "+mutedStyle.Render(b.SourceRoot()+" → "+b.OutputRoot()))

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-hup:
			log.Info("Received SIGHUP, queueing rebuild")
			requestRebuild(eventQueue)
		}
	}

	// --- Graceful Shutdown ---
	// Stop order: watcher first (no new events), then the runner, then the queue.
	log.Info("Shutting down services...")
	if err := watcherService.Stop(); err != nil {
		log.Error("Error stopping watcher", "error", err)
	}
	runner.Stop()
	if err := eventQueue.Stop(); err != nil {
		log.Error("Error stopping event queue", "error", err)
	}
	fmt.Fprintln(out, mutedStyle.Render("stopped"))
	log.Info("Shutdown complete.")
	return nil
}

func requestRebuild(eq *queue.EventQueue) {
	if err := eq.Enqueue(models.BuildEvent{Kind: models.ChangeManual, Timestamp: time.Now().UTC()}); err != nil {
		logger.L().Warn("Could not queue rebuild", "error", err)
	}
}
