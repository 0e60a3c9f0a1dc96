package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  string
		retryable bool
	}{
		{"rate limit", &googleapi.Error{Code: 429}, "rate_limit", true},
		{"wrapped server error", fmt.Errorf("call: %w", &googleapi.Error{Code: 503}), "server_error", true},
		{"bad request", &googleapi.Error{Code: 400}, "bad_request", false},
		{"deadline", context.DeadlineExceeded, "timeout", true},
		{"canceled", context.Canceled, "canceled", false},
		{"quota text", errors.New("Quota exceeded for project"), "quota_exceeded", false},
		{"network text", errors.New("connection reset by peer"), "network_error", true},
		{"unknown", errors.New("weird"), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := categorizeError("gemini", tt.err)
			assert.Equal(t, tt.category, perr.Category)
			assert.Equal(t, tt.retryable, perr.Retryable)
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffMultiple: 2}
	assert.Equal(t, time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 3*time.Second, calculateBackoff(3, cfg))
}

func TestUserFriendlyMessageForGuardErrors(t *testing.T) {
	assert.Contains(t, UserFriendlyMessage(fmt.Errorf("%w: gemini", ErrProviderUnavailable)), "AI")
	assert.NotEqual(t, UserFriendlyMessage(ErrTimeout), UserFriendlyMessage(errors.New("x")))
}
