package retry

import (
	"context"
	"errors"
	"time"

	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/pkg/models"
)

// Defaults suited to filesystem work: an editor saving a file can briefly
// leave it missing or half written, which usually settles within a second.
const (
	DefaultMaxRetries    = 2
	DefaultDelaySeconds  = 0.25
	DefaultBackoffFactor = 2.0
)

// DefaultRetryPolicy is used for any field left unset by both the specific and default policies.
var DefaultRetryPolicy = models.RetryPolicy{
	MaxRetries:    intPtr(DefaultMaxRetries),
	Delay:         float64Ptr(DefaultDelaySeconds),
	BackoffFactor: float64Ptr(DefaultBackoffFactor),
}

// Operation is a function that performs an action and returns an error if it fails.
type Operation func(ctx context.Context) error

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error as
// soon as an operation reports it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do executes op, retrying according to policy while it fails with a
// non-permanent error. Fields missing from policy fall back to DefaultRetryPolicy.
// Permanent errors are returned unwrapped.
func Do(ctx context.Context, operationName string, policy *models.RetryPolicy, op Operation) error {
	if err := ctx.Err(); err != nil {
		logger.L().Warn("Operation cancelled before first attempt", "operation", operationName, "error", err)
		return err
	}

	effective := MergePolicies(policy, nil)
	l := logger.L().With("operation", operationName)

	maxRetries := *effective.MaxRetries
	delay := time.Duration(*effective.Delay * float64(time.Second))
	backoff := *effective.BackoffFactor

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 0 {
				l.Info("Operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}

		var p *permanentError
		if errors.As(lastErr, &p) {
			l.Debug("Operation failed permanently, not retrying", "error", p.err)
			return p.err
		}

		if attempt == maxRetries {
			break
		}

		l.Warn("Operation failed, scheduling retry", "attempt", attempt+1, "max_attempts", maxRetries+1, "delay", delay.String(), "error", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			delay = time.Duration(float64(delay) * backoff)
		case <-ctx.Done():
			timer.Stop()
			l.Warn("Retry cancelled", "error", ctx.Err())
			return ctx.Err()
		}
	}

	l.Error("Operation failed after exhausting all retries", "attempts", maxRetries+1, "error", lastErr)
	return lastErr
}

// MergePolicies combines a specific policy with a default policy field by
// field. Specific values win; anything still unset comes from DefaultRetryPolicy.
// The result always has every field populated.
func MergePolicies(specific, defaultP *models.RetryPolicy) *models.RetryPolicy {
	merged := models.RetryPolicy{}
	for _, p := range []*models.RetryPolicy{specific, defaultP, &DefaultRetryPolicy} {
		if p == nil {
			continue
		}
		if merged.MaxRetries == nil && p.MaxRetries != nil {
			merged.MaxRetries = p.MaxRetries
		}
		if merged.Delay == nil && p.Delay != nil {
			merged.Delay = p.Delay
		}
		if merged.BackoffFactor == nil && p.BackoffFactor != nil {
			merged.BackoffFactor = p.BackoffFactor
		}
	}

	// DefaultRetryPolicy is exported and could have been altered by a caller.
	if merged.MaxRetries == nil {
		merged.MaxRetries = intPtr(DefaultMaxRetries)
	}
	if merged.Delay == nil {
		merged.Delay = float64Ptr(DefaultDelaySeconds)
	}
	if merged.BackoffFactor == nil {
		merged.BackoffFactor = float64Ptr(DefaultBackoffFactor)
	}
	return &merged
}

func intPtr(i int) *int             { return &i }
func float64Ptr(f float64) *float64 { return &f }
