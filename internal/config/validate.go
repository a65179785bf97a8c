package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pbaity/folio/pkg/models"
)

// ValidateConfig checks the entire configuration for logical consistency and required fields.
// It expects defaults to have been applied already.
func ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateApplicationSettings(&cfg.Application); err != nil {
		return fmt.Errorf("invalid application settings: %w", err)
	}
	if err := validateSiteConfig(&cfg.Site); err != nil {
		return fmt.Errorf("invalid site settings: %w", err)
	}
	if cfg.Watch.Debounce.Duration < 0 {
		return fmt.Errorf("invalid watch settings: debounce cannot be negative: %s", cfg.Watch.Debounce.Duration)
	}

	hookIDs := make(map[string]bool)
	for i, hook := range cfg.Hooks {
		if err := validateHookConfig(&hook, i); err != nil {
			return fmt.Errorf("invalid hook config at index %d (ID: %s): %w", i, hook.ID, err)
		}
		if hookIDs[hook.ID] {
			return fmt.Errorf("duplicate hook ID found: %s", hook.ID)
		}
		hookIDs[hook.ID] = true
	}
	return nil
}

func validateApplicationSettings(app *models.ApplicationSettings) error {
	level := strings.ToLower(app.LogLevel)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", app.LogLevel)
	}
	format := strings.ToLower(app.LogFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", app.LogFormat)
	}
	if app.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative: %d", app.QueueCapacity)
	}
	return validateRetryPolicy(&app.DefaultRetry, "default_retry")
}

func validateSiteConfig(site *models.SiteConfig) error {
	if site.SourceRoot == "" {
		return errors.New("source_root cannot be empty")
	}
	if site.OutputRoot == "" {
		return errors.New("output_root cannot be empty")
	}

	for name, rel := range map[string]string{
		"template":   site.Template,
		"pages_dir":  site.PagesDir,
		"static_dir": site.StaticDir,
	} {
		if rel == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if filepath.IsAbs(rel) {
			return fmt.Errorf("%s must be relative to source_root: %s", name, rel)
		}
		if clean := filepath.Clean(rel); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%s must stay inside source_root: %s", name, rel)
		}
	}

	same, err := samePath(site.SourceRoot, site.OutputRoot)
	if err != nil {
		return err
	}
	if same {
		return fmt.Errorf("output_root cannot be the same directory as source_root: %s", site.OutputRoot)
	}
	nested, err := isWithin(site.SourceRoot, site.OutputRoot)
	if err != nil {
		return err
	}
	if nested {
		return fmt.Errorf("output_root %s cannot be inside source_root %s", site.OutputRoot, site.SourceRoot)
	}
	if site.ShouldClean() {
		inside, err := isWithin(site.OutputRoot, site.SourceRoot)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("output_root %s contains source_root %s; cleaning would delete sources (set clean: false)", site.OutputRoot, site.SourceRoot)
		}
	}

	if site.IndexDir != "" {
		inside, err := isWithin(site.SourceRoot, site.IndexDir)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("index_dir %s cannot be inside source_root %s", site.IndexDir, site.SourceRoot)
		}
	}

	for _, pattern := range site.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateHookConfig(hook *models.HookConfig, index int) error {
	if hook.ID == "" {
		return fmt.Errorf("hook at index %d must have an ID", index)
	}
	if strings.TrimSpace(hook.Script) == "" {
		return errors.New("script cannot be empty")
	}
	if hook.Timeout.Duration < 0 {
		return fmt.Errorf("timeout cannot be negative: %s", hook.Timeout.Duration)
	}
	return nil
}

func validateRetryPolicy(policy *models.RetryPolicy, fieldName string) error {
	if policy == nil {
		return nil
	}
	if policy.MaxRetries != nil && *policy.MaxRetries < 0 {
		return fmt.Errorf("%s: max_retries cannot be negative", fieldName)
	}
	if policy.Delay != nil && *policy.Delay < 0 {
		return fmt.Errorf("%s: delay cannot be negative", fieldName)
	}
	if policy.BackoffFactor != nil && *policy.BackoffFactor < 1.0 {
		return fmt.Errorf("%s: backoff_factor cannot be less than 1.0", fieldName)
	}
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path %s: %w", b, err)
	}
	return absA == absB, nil
}

// isWithin reports whether child is parent or lies below it.
func isWithin(parent, child string) (bool, error) {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path %s: %w", parent, err)
	}
	absChild, err := filepath.Abs(child)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path %s: %w", child, err)
	}
	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}
