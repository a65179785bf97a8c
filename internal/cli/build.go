package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pbaity/folio/internal/builder"
	"github.com/pbaity/folio/internal/hook"
	"github.com/pbaity/folio/internal/rebuild"
	"github.com/pbaity/folio/pkg/models"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the site once",
	Long: `Renders the source tree into the output tree, then runs the configured
post-build hooks. Exits non-zero if the build or any hook fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runBuild(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// newProcessor wires a builder and the hook executor behind a rebuild
// processor that reports every outcome to out.
func newProcessor(cfg *models.Config, out io.Writer) (*rebuild.Processor, *builder.Builder, error) {
	b, err := builder.New(cfg.Site)
	if err != nil {
		return nil, nil, err
	}
	proc := rebuild.NewProcessor(cfg, b, hook.NewExecutor())
	proc.OnResult = func(o rebuild.Outcome) {
		fmt.Fprintln(out, statusLine(o))
	}
	return proc, b, nil
}

func runBuild(ctx context.Context, cfg *models.Config, out io.Writer) error {
	proc, _, err := newProcessor(cfg, out)
	if err != nil {
		return err
	}
	return proc.Process(ctx, []models.BuildEvent{{Kind: models.ChangeManual, Timestamp: time.Now().UTC()}})
}
