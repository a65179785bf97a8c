package cli

import (
	"context"
	"fmt"

	"github.com/pbaity/folio/internal/config"
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/pkg/models"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "folio.yaml"

var (
	// cfgFile will hold the path to the config file, bound to the persistent flag
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Folio builds a static site and rebuilds it as you write",
	Long: `Folio renders a source tree of pages, Markdown posts and static assets
into a static output tree, wrapping every page in a shared template.

'folio build' renders the site once; 'folio watch' keeps the output up to
date while you edit. Run 'folio help <command>' for more information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", defaultConfigFile, "Path to the configuration file")
	flags.String("source", "", "Source root directory (overrides site.source_root)")
	flags.String("output", "", "Output root directory (overrides site.output_root)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig resolves the effective configuration for cmd: the config file
// (optional unless --config was given), then environment and flag overrides.
// It also initializes the logger.
func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	required := cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(cfgFile, required)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration from '%s': %w", cfgFile, err)
	}
	if err := config.ApplyOverrides(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Application, nil); err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	return cfg, nil
}
