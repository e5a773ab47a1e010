package infra_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smart-lock/internal/infra"
)

func fastRetry() infra.RetryConfig {
	return infra.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return infra.Retryable(errors.New("busy"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return infra.Retryable(errors.New("still busy"))
	})

	assert.Error(t, err)
	assert.True(t, infra.IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetry_NoRetry(t *testing.T) {
	calls := 0
	_ = infra.WithRetry(context.Background(), infra.NoRetry(), func() error {
		calls++
		return infra.Retryable(errors.New("busy"))
	})

	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry()
	cfg.InitialDelay = time.Second
	err := infra.WithRetry(ctx, cfg, func() error {
		return infra.Retryable(errors.New("busy"))
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	assert.True(t, infra.IsRetryableHTTPStatus(http.StatusTooManyRequests))
	assert.True(t, infra.IsRetryableHTTPStatus(http.StatusBadGateway))
	assert.True(t, infra.IsRetryableHTTPStatus(http.StatusServiceUnavailable))
	assert.False(t, infra.IsRetryableHTTPStatus(http.StatusBadRequest))
	assert.False(t, infra.IsRetryableHTTPStatus(http.StatusOK))
}
