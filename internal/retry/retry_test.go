package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInitLogger(t *testing.T) {
	t.Helper()
	settings := models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}
	require.NoError(t, logger.Init(settings, io.Discard))
}

func ptr[T any](v T) *T {
	return &v
}

func TestMergePolicies(t *testing.T) {
	defaultPolicy := &models.RetryPolicy{MaxRetries: ptr(5), Delay: ptr(1.0), BackoffFactor: ptr(3.0)}

	tests := []struct {
		name            string
		specific        *models.RetryPolicy
		defaultP        *models.RetryPolicy
		expectedRetries int
		expectedDelay   float64
		expectedFactor  float64
	}{
		{
			name:            "specific overrides default",
			specific:        &models.RetryPolicy{MaxRetries: ptr(3), Delay: ptr(0.5)},
			defaultP:        defaultPolicy,
			expectedRetries: 3,
			expectedDelay:   0.5,
			expectedFactor:  3.0,
		},
		{
			name:            "nil specific uses default",
			defaultP:        defaultPolicy,
			expectedRetries: 5,
			expectedDelay:   1.0,
			expectedFactor:  3.0,
		},
		{
			name:            "both nil use constants",
			expectedRetries: DefaultMaxRetries,
			expectedDelay:   DefaultDelaySeconds,
			expectedFactor:  DefaultBackoffFactor,
		},
		{
			name:            "empty default falls through to constants",
			specific:        &models.RetryPolicy{BackoffFactor: ptr(1.5)},
			defaultP:        &models.RetryPolicy{},
			expectedRetries: DefaultMaxRetries,
			expectedDelay:   DefaultDelaySeconds,
			expectedFactor:  1.5,
		},
		{
			name:            "explicit zero values win",
			specific:        &models.RetryPolicy{MaxRetries: ptr(0), Delay: ptr(0.0), BackoffFactor: ptr(1.0)},
			defaultP:        defaultPolicy,
			expectedRetries: 0,
			expectedDelay:   0.0,
			expectedFactor:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := MergePolicies(tt.specific, tt.defaultP)
			require.NotNil(t, merged.MaxRetries)
			require.NotNil(t, merged.Delay)
			require.NotNil(t, merged.BackoffFactor)
			assert.Equal(t, tt.expectedRetries, *merged.MaxRetries)
			assert.Equal(t, tt.expectedDelay, *merged.Delay)
			assert.Equal(t, tt.expectedFactor, *merged.BackoffFactor)
		})
	}
}

type mockOperation struct {
	attemptsNeeded int
	callCount      int
	err            error // returned on every failing call when set
	failForever    bool
	lastContext    context.Context
}

func (m *mockOperation) execute(ctx context.Context) error {
	m.callCount++
	m.lastContext = ctx
	if m.err != nil {
		return m.err
	}
	if m.failForever || m.callCount < m.attemptsNeeded {
		return fmt.Errorf("write failed (call %d)", m.callCount)
	}
	return nil
}

func TestDo_SuccessFirstTry(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{attemptsNeeded: 1}

	err := Do(context.Background(), "build", &models.RetryPolicy{MaxRetries: ptr(3), Delay: ptr(0.01)}, op.execute)

	assert.NoError(t, err)
	assert.Equal(t, 1, op.callCount)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{attemptsNeeded: 3}
	policy := &models.RetryPolicy{MaxRetries: ptr(5), Delay: ptr(0.01), BackoffFactor: ptr(1.0)}

	err := Do(context.Background(), "build", policy, op.execute)

	assert.NoError(t, err)
	assert.Equal(t, 3, op.callCount)
}

func TestDo_FailureAfterMaxRetries(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{failForever: true}
	policy := &models.RetryPolicy{MaxRetries: ptr(2), Delay: ptr(0.01), BackoffFactor: ptr(1.0)}

	start := time.Now()
	err := Do(context.Background(), "build", policy, op.execute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed (call 3)")
	assert.Equal(t, 3, op.callCount)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	testInitLogger(t)
	cause := fmt.Errorf("front matter: %w", fs.ErrInvalid)
	op := &mockOperation{err: Permanent(cause)}
	policy := &models.RetryPolicy{MaxRetries: ptr(5), Delay: ptr(0.01)}

	err := Do(context.Background(), "build", policy, op.execute)

	require.Error(t, err)
	assert.Equal(t, 1, op.callCount)
	assert.Equal(t, cause, err, "permanent errors are returned unwrapped")
	assert.ErrorIs(t, err, fs.ErrInvalid)
	var p *permanentError
	assert.False(t, errors.As(err, &p))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("malformed template")
	p := Permanent(base)
	var target *permanentError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", p), &target))
	assert.ErrorIs(t, p, base)
	assert.Equal(t, base.Error(), p.Error())
	assert.False(t, errors.As(base, &target))
}

func TestDo_ZeroRetries(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{failForever: true}

	err := Do(context.Background(), "build", &models.RetryPolicy{MaxRetries: ptr(0), Delay: ptr(0.01)}, op.execute)

	require.Error(t, err)
	assert.Equal(t, 1, op.callCount)
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{failForever: true}
	policy := &models.RetryPolicy{MaxRetries: ptr(3), Delay: ptr(1.0)}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, "build", policy, op.execute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, op.callCount)
	assert.ErrorIs(t, op.lastContext.Err(), context.Canceled)
}

func TestDo_ContextCancellationBeforeFirstTry(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{failForever: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, "build", nil, op.execute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, op.callCount)
}

func TestDo_NilPolicyUsesDefaults(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{attemptsNeeded: 2}

	err := Do(context.Background(), "build", nil, op.execute)

	assert.NoError(t, err)
	assert.Equal(t, 2, op.callCount)
}

func TestDo_BackoffFactor(t *testing.T) {
	testInitLogger(t)
	op := &mockOperation{failForever: true}
	policy := &models.RetryPolicy{MaxRetries: ptr(2), Delay: ptr(0.05), BackoffFactor: ptr(2.0)}

	start := time.Now()
	err := Do(context.Background(), "build", policy, op.execute)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 3, op.callCount)
	// 50ms then 100ms
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}
