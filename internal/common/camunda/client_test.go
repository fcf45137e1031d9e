package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{errors.New("rpc error: code = Unavailable desc = connection refused"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("rpc error: code = NotFound desc = job not found"), false},
		{errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableZeebeError(tt.err))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	retry := &RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, backoffDelay(retry, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(retry, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(retry, 2))
	assert.Equal(t, 5*time.Second, backoffDelay(retry, 3))
}

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}}}

	t.Run("retries transient errors until success", func(t *testing.T) {
		attempts := 0
		err := c.ExecuteWithRetry(context.Background(), "probe", func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("unavailable")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		attempts := 0
		err := c.ExecuteWithRetry(context.Background(), "probe", func(context.Context) error {
			attempts++
			return errors.New("invalid argument")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := c.ExecuteWithRetry(context.Background(), "probe", func(context.Context) error {
			attempts++
			return errors.New("timeout")
		})
		assert.Error(t, err)
		assert.Equal(t, 4, attempts)
	})
}
