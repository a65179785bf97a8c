package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/pbaity/folio/pkg/models"
	"gopkg.in/yaml.v3"
)

// Built-in defaults. They reproduce the layout the site has always used:
// content/base.html wrapping content/pages/* into build/.
const (
	DefaultSourceRoot     = "content"
	DefaultOutputRoot     = "build"
	DefaultTemplate       = "base.html"
	DefaultPagesDir       = "pages"
	DefaultStaticDir      = "static"
	DefaultHighlightStyle = "github"
	DefaultQueueCapacity  = 64
	DefaultDebounce       = 100 * time.Millisecond
	DefaultPIDFile        = ".folio.pid"
)

// Default returns a configuration with every default applied.
func Default() *models.Config {
	cfg := &models.Config{}
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults for anything
// left unset and validates the result. Unknown keys are rejected.
func LoadConfig(configPath string) (*models.Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var cfg models.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", configPath, err)
	}

	ApplyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault behaves like LoadConfig, except that a missing file yields the
// built-in defaults unless required is set.
func LoadOrDefault(configPath string, required bool) (*models.Config, error) {
	cfg, err := LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// ApplyDefaults fills every unset field of cfg with its default value.
func ApplyDefaults(cfg *models.Config) {
	app := &cfg.Application
	if app.LogLevel == "" {
		app.LogLevel = "info"
	}
	if app.LogFormat == "" {
		app.LogFormat = "text"
	}
	if app.QueueCapacity == 0 {
		app.QueueCapacity = DefaultQueueCapacity
	}
	if app.PIDFilePath == "" {
		app.PIDFilePath = DefaultPIDFile
	}

	site := &cfg.Site
	if site.SourceRoot == "" {
		site.SourceRoot = DefaultSourceRoot
	}
	if site.OutputRoot == "" {
		site.OutputRoot = DefaultOutputRoot
	}
	if site.Template == "" {
		site.Template = DefaultTemplate
	}
	if site.PagesDir == "" {
		site.PagesDir = DefaultPagesDir
	}
	if site.StaticDir == "" {
		site.StaticDir = DefaultStaticDir
	}
	if site.Clean == nil {
		clean := true
		site.Clean = &clean
	}
	if site.Markdown.HighlightStyle == "" {
		site.Markdown.HighlightStyle = DefaultHighlightStyle
	}

	if cfg.Watch.Debounce.Duration == 0 {
		cfg.Watch.Debounce.Duration = DefaultDebounce
	}
}
