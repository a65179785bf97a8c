// Package rebuild turns a batch of change events into one build followed by
// the configured post-build hooks.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pbaity/folio/internal/builder"
	"github.com/pbaity/folio/internal/hook"
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/retry"
	"github.com/pbaity/folio/pkg/models"
)

// Builder runs one full build.
type Builder interface {
	Build(ctx context.Context) (*builder.Result, error)
	SourceRoot() string
	OutputRoot() string
}

// HookRunner runs post-build hooks.
type HookRunner interface {
	RunAll(ctx context.Context, hooks []models.HookConfig, info hook.BuildInfo) error
}

// Outcome is what one rebuild produced. Result is nil when the build failed.
type Outcome struct {
	Changed []string
	Result  *builder.Result
	Err     error // build error
	HookErr error
}

// Processor implements worker.Processor.
type Processor struct {
	cfg     *models.Config
	builder Builder
	hooks   HookRunner

	// OnResult, when set, is called after every rebuild attempt.
	OnResult func(Outcome)
}

// NewProcessor creates a new rebuild processor.
func NewProcessor(cfg *models.Config, b Builder, hooks HookRunner) *Processor {
	return &Processor{cfg: cfg, builder: b, hooks: hooks}
}

// Process builds once for the whole batch. Transient failures are retried per
// the default retry policy; malformed sources fail immediately.
func (p *Processor) Process(ctx context.Context, batch []models.BuildEvent) error {
	out := p.Run(ctx, batch)
	if out.Err != nil {
		return fmt.Errorf("build failed: %w", out.Err)
	}
	if out.HookErr != nil {
		return fmt.Errorf("post-build hooks failed: %w", out.HookErr)
	}
	return nil
}

// Run is Process returning the full outcome.
func (p *Processor) Run(ctx context.Context, batch []models.BuildEvent) Outcome {
	out := Outcome{Changed: changedPaths(batch)}
	l := logger.L().With("events", len(batch))
	l.Info("Rebuilding site", "changed", out.Changed)

	policy := retry.MergePolicies(nil, &p.cfg.Application.DefaultRetry)
	out.Err = retry.Do(ctx, "build", policy, func(ctx context.Context) error {
		res, err := p.builder.Build(ctx)
		if err != nil {
			if errors.Is(err, builder.ErrMalformed) {
				return retry.Permanent(err)
			}
			return err
		}
		out.Result = res
		return nil
	})

	if out.Err != nil {
		l.Error("Build failed; waiting for the next change", "error", out.Err)
	} else if len(p.cfg.Hooks) > 0 {
		out.HookErr = p.hooks.RunAll(ctx, p.cfg.Hooks, hook.BuildInfo{
			BuildID:     out.Result.BuildID,
			SourceRoot:  p.builder.SourceRoot(),
			OutputRoot:  p.builder.OutputRoot(),
			Fingerprint: out.Result.Fingerprint,
			Changed:     out.Changed,
		})
		if out.HookErr != nil {
			l.Error("Post-build hooks failed", "build_id", out.Result.BuildID, "error", out.HookErr)
		}
	}

	if p.OnResult != nil {
		p.OnResult(out)
	}
	return out
}

// changedPaths returns the distinct paths in batch in sorted order. Manual
// events carry no path.
func changedPaths(batch []models.BuildEvent) []string {
	seen := make(map[string]bool, len(batch))
	paths := make([]string, 0, len(batch))
	for _, e := range batch {
		if e.Path == "" || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	return paths
}
