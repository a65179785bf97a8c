package config

import (
	"fmt"
	"strings"

	"github.com/pbaity/folio/pkg/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FOLIO_SITE_OUTPUT_ROOT.
const EnvPrefix = "FOLIO"

// overrideFlags maps configuration keys to the command-line flag that may set them.
// Keys with an empty flag name can only be overridden from the environment.
var overrideFlags = map[string]string{
	"application.log_level":  "log-level",
	"application.log_format": "",
	"site.source_root":       "source",
	"site.output_root":       "output",
	"site.index_dir":         "",
	"watch.debounce":         "",
}

// ApplyOverrides layers environment variables and explicitly set flags on top
// of cfg, then re-validates it. Flags win over the environment, which wins
// over the file. flags may be nil.
func ApplyOverrides(cfg *models.Config, flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, flagName := range overrideFlags {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
		if flags == nil || flagName == "" {
			continue
		}
		if f := flags.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", flagName, err)
			}
		}
	}

	if v.IsSet("application.log_level") {
		cfg.Application.LogLevel = v.GetString("application.log_level")
	}
	if v.IsSet("application.log_format") {
		cfg.Application.LogFormat = v.GetString("application.log_format")
	}
	if v.IsSet("site.source_root") {
		cfg.Site.SourceRoot = v.GetString("site.source_root")
	}
	if v.IsSet("site.output_root") {
		cfg.Site.OutputRoot = v.GetString("site.output_root")
	}
	if v.IsSet("site.index_dir") {
		cfg.Site.IndexDir = v.GetString("site.index_dir")
	}
	if v.IsSet("watch.debounce") {
		cfg.Watch.Debounce = models.Duration{Duration: v.GetDuration("watch.debounce")}
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed after overrides: %w", err)
	}
	return nil
}
