package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/pkg/models"
)

// PlaceholderRegex matches the {{placeholder}} syntax.
var PlaceholderRegex = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// BuildInfo describes the build a hook runs after.
type BuildInfo struct {
	BuildID     string
	SourceRoot  string
	OutputRoot  string
	Fingerprint string
	Changed     []string // source paths that triggered the build, slash separated
}

func (b BuildInfo) params() map[string]string {
	return map[string]string{
		"build_id":    b.BuildID,
		"source_root": b.SourceRoot,
		"output_root": b.OutputRoot,
		"fingerprint": b.Fingerprint,
		"changed":     strings.Join(b.Changed, " "),
	}
}

func (b BuildInfo) environ() []string {
	return []string{
		"FOLIO_BUILD_ID=" + b.BuildID,
		"FOLIO_SOURCE_ROOT=" + b.SourceRoot,
		"FOLIO_OUTPUT_ROOT=" + b.OutputRoot,
		"FOLIO_FINGERPRINT=" + b.Fingerprint,
		"FOLIO_CHANGED=" + strings.Join(b.Changed, "\n"),
	}
}

// Executor runs post-build hooks.
type Executor struct{}

// NewExecutor creates a new hook executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// RunAll runs hooks in order. Every hook runs even if an earlier one failed;
// the failures are joined into the returned error.
func (e *Executor) RunAll(ctx context.Context, hooks []models.HookConfig, info BuildInfo) error {
	var errs []error
	for _, h := range hooks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, _, err := e.Execute(ctx, h, info); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", h.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Execute runs a single hook. Multi-line scripts run from a temporary file,
// through /bin/sh unless they carry a shebang; single-line scripts run as a
// command followed by its arguments.
func (e *Executor) Execute(ctx context.Context, hook models.HookConfig, info BuildInfo) (stdout, stderr string, err error) {
	l := logger.L().With("build_id", info.BuildID, "hook_id", hook.ID)
	l.Info("Running hook")

	multiLine := strings.ContainsAny(strings.TrimSpace(hook.Script), "\n\r")
	var script string
	var parts []string
	if multiLine {
		script, err = substitutePlaceholders(hook.Script, info.params())
	} else {
		parts, err = commandArgs(hook.Script, info)
	}
	if err != nil {
		l.Error("Placeholder substitution failed", "error", err)
		return "", "", fmt.Errorf("placeholder substitution failed: %w", err)
	}

	if hook.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hook.Timeout.Duration)
		defer cancel()
	}

	var cmd *exec.Cmd
	if multiLine {
		tmpFile, err := os.CreateTemp("", fmt.Sprintf("folio_hook_%s_*.sh", hook.ID))
		if err != nil {
			return "", "", fmt.Errorf("failed to create temp script file: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(script); err != nil {
			tmpFile.Close()
			return "", "", fmt.Errorf("failed to write temp script: %w", err)
		}
		tmpFile.Close()

		if strings.HasPrefix(script, "#!") {
			if err := os.Chmod(tmpFile.Name(), 0o700); err != nil {
				return "", "", fmt.Errorf("failed to chmod temp script: %w", err)
			}
			cmd = exec.CommandContext(ctx, tmpFile.Name())
		} else {
			cmd = exec.CommandContext(ctx, "/bin/sh", tmpFile.Name())
		}
		l.Debug("Executing inline script via temporary file", "temp_file", tmpFile.Name())
	} else {
		if len(parts) == 0 {
			return "", "", errors.New("script command is empty after substitution")
		}
		l.Debug("Executing command", "command", parts[0], "args", parts[1:])
		cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	cmd.Env = append(os.Environ(), info.environ()...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	startTime := time.Now()
	runErr := cmd.Run()
	duration := time.Since(startTime)

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = fmt.Errorf("%w (%w)", runErr, ctxErr)
		}
		l.Error("Hook failed", "error", runErr, "exit_code", exitCode, "duration", duration.String(), "stdout", stdout, "stderr", stderr)
		return stdout, stderr, fmt.Errorf("hook command failed with exit code %d: %w", exitCode, runErr)
	}

	l.Info("Hook finished", "duration", duration.String(), "stdout_len", len(stdout), "stderr_len", len(stderr))
	l.Debug("Hook output", "stdout", stdout, "stderr", stderr)
	return stdout, stderr, nil
}

// substitutePlaceholders replaces {{key}} patterns in a string with values from a map.
// Unknown keys are left in place and reported as an error.
// commandArgs splits a single-line script into a command and its arguments
// before substituting placeholders, so a substituted value stays one argument.
// A field that is exactly {{changed}} expands to one argument per changed path.
func commandArgs(script string, info BuildInfo) ([]string, error) {
	normalized := PlaceholderRegex.ReplaceAllStringFunc(script, func(match string) string {
		return "{{" + strings.TrimSpace(PlaceholderRegex.FindStringSubmatch(match)[1]) + "}}"
	})
	params := info.params()
	var args []string
	for _, field := range strings.Fields(normalized) {
		if field == "{{changed}}" {
			args = append(args, info.Changed...)
			continue
		}
		value, err := substitutePlaceholders(field, params)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return args, nil
}

func substitutePlaceholders(template string, params map[string]string) (string, error) {
	var firstError error
	result := PlaceholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(PlaceholderRegex.FindStringSubmatch(match)[1])
		value, ok := params[key]
		if !ok {
			if firstError == nil {
				firstError = fmt.Errorf("unknown placeholder '{{%s}}'", key)
			}
			return match
		}
		return value
	})
	return result, firstError
}
