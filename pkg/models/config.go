package models

import "time"

// Config is the root configuration structure for folio.
type Config struct {
	Application ApplicationSettings `yaml:"application"`
	Site        SiteConfig          `yaml:"site"`
	Watch       WatchConfig         `yaml:"watch"`
	Hooks       []HookConfig        `yaml:"hooks"`
}

// ApplicationSettings holds process-wide settings.
type ApplicationSettings struct {
	LogLevel      string      `yaml:"log_level"`      // e.g., "debug", "info", "warn", "error"
	LogFormat     string      `yaml:"log_format"`     // e.g., "text", "json"
	DefaultRetry  RetryPolicy `yaml:"default_retry"`  // Retry policy for transient build failures
	QueueCapacity int         `yaml:"queue_capacity"` // Max pending change events before new ones are coalesced
	PIDFilePath   string      `yaml:"pid_file_path"`  // Path to store the watcher's process ID
}

// RetryPolicy defines the parameters for retrying failed operations.
// Pointers are used to distinguish between a value being explicitly set (even to 0 or 0.0)
// and not being set at all, allowing for proper merging with default policies.
type RetryPolicy struct {
	MaxRetries    *int     `yaml:"max_retries,omitempty"`    // Max number of retries
	Delay         *float64 `yaml:"delay,omitempty"`          // Initial delay in seconds
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"` // Multiplier for exponential backoff (e.g., 2.0)
}

// SiteConfig describes where sources live and where rendered output goes.
// Relative paths are resolved against the working directory, except Template,
// PagesDir and StaticDir which are relative to SourceRoot.
type SiteConfig struct {
	SourceRoot string         `yaml:"source_root"`
	OutputRoot string         `yaml:"output_root"`
	IndexDir   string         `yaml:"index_dir"` // Optional destination for the top-level index page
	Template   string         `yaml:"template"`
	PagesDir   string         `yaml:"pages_dir"`
	StaticDir  string         `yaml:"static_dir"`
	Clean      *bool          `yaml:"clean"` // Remove outputs not produced by the current build (default true)
	Ignore     []string       `yaml:"ignore"`
	Markdown   MarkdownConfig `yaml:"markdown"`
}

// ShouldClean reports whether stale outputs are removed after a build.
func (s SiteConfig) ShouldClean() bool {
	return s.Clean == nil || *s.Clean
}

// MarkdownConfig controls rendering of Markdown pages.
type MarkdownConfig struct {
	HighlightStyle string `yaml:"highlight_style"` // chroma style name, "none" disables highlighting
	Sanitize       bool   `yaml:"sanitize"`        // Pass rendered bodies through an HTML sanitizer
}

// WatchConfig holds settings for the watch-and-rebuild loop.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"` // Quiet period collected into a single rebuild
}

// HookConfig defines a command run after every successful build.
type HookConfig struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Script      string   `yaml:"script"`  // Command line or inline script; supports {{placeholders}}
	Timeout     Duration `yaml:"timeout"` // Zero means no timeout
}

// Duration is a wrapper around time.Duration to allow parsing from YAML strings
// like "10s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	var err error
	d.Duration, err = time.ParseDuration(s)
	return err
}

// MarshalYAML renders the duration back in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
