// gemini_retry.go - Retry logic and error handling for vision provider calls

package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"google.golang.org/api/googleapi"
)

// RetryConfig defines retry behavior for provider calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults for retry behavior
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// ProviderError represents a categorized vision provider error
type ProviderError struct {
	OriginalError error
	Provider      string
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s/%s] %s (status: %d, retryable: %v)", e.Provider, e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *ProviderError) Unwrap() error { return e.OriginalError }

// categorizeStatus fills category/message/retryable from an HTTP status code
func categorizeStatus(perr *ProviderError, code int, apiMessage string) {
	perr.StatusCode = code

	switch code {
	case 400:
		perr.Category = "bad_request"
		perr.Message = "Invalid request format or parameters"
	case 401:
		perr.Category = "unauthorized"
		perr.Message = "Invalid API key or authentication failed"
	case 403:
		perr.Category = "forbidden"
		perr.Message = "API key lacks required permissions"
	case 404:
		perr.Category = "not_found"
		perr.Message = "Model not found or invalid endpoint"
	case 413:
		perr.Category = "payload_too_large"
		perr.Message = "Request size exceeds limit (reduce image size)"
	case 429:
		perr.Category = "rate_limit"
		perr.Message = "Rate limit exceeded - too many requests"
		perr.Retryable = true
	case 500, 502, 503, 504:
		perr.Category = "server_error"
		perr.Message = fmt.Sprintf("%s server error (%d)", perr.Provider, code)
		perr.Retryable = true
	default:
		perr.Category = "unknown_api_error"
		perr.Message = fmt.Sprintf("API error: %s", apiMessage)
		perr.Retryable = code >= 500
	}
}

// categorizeError analyzes error and determines retry strategy
func categorizeError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var already *ProviderError
	if errors.As(err, &already) {
		return already
	}

	perr := &ProviderError{
		OriginalError: err,
		Provider:      provider,
		Category:      "unknown",
		Message:       err.Error(),
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		categorizeStatus(perr, apiErr.Code, apiErr.Message)
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		perr.Category = "timeout"
		perr.Message = "Request timeout - processing took too long"
		perr.Retryable = true
		return perr
	}

	if errors.Is(err, context.Canceled) {
		perr.Category = "canceled"
		perr.Message = "Request was canceled"
		return perr
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "quota"):
		perr.Category = "quota_exceeded"
		perr.Message = "API quota exceeded - daily or monthly limit reached"
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		perr.Category = "timeout"
		perr.Message = "Request timeout"
		perr.Retryable = true
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network"):
		perr.Category = "network_error"
		perr.Message = "Network connection error"
		perr.Retryable = true
	}

	return perr
}

// callWithRetry executes a provider call with retry logic
func callWithRetry(ctx context.Context, provider string, reqCtx *common.RequestContext, config RetryConfig, call func(context.Context) error) error {
	var lastErr *ProviderError

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("Retry attempt %d/%d", attempt, config.MaxAttempts)
		}

		err := call(ctx)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ Retry succeeded on attempt %d", attempt)
			}
			return nil
		}

		lastErr = categorizeError(provider, err)
		reqCtx.LogError("API call failed (attempt %d/%d): %s", attempt, config.MaxAttempts, lastErr.Error())

		if !lastErr.Retryable {
			reqCtx.LogError("Non-retryable error detected, aborting")
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, config)

		// rate limits get a longer pause
		if lastErr.Category == "rate_limit" {
			delay = delay * 2
			reqCtx.LogWarning("Rate limit hit, waiting %v before retry", delay)
		} else {
			reqCtx.LogInfo("Waiting %v before retry", delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry wait: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	reqCtx.LogError("❌ All %d attempts failed, last error: %s", config.MaxAttempts, lastErr.Error())
	return fmt.Errorf("%s call failed after %d attempts: %w", provider, config.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff delay
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}

// UserFriendlyMessage converts a technical error into a message for the teacher
func UserFriendlyMessage(err error) string {
	var perr *ProviderError
	if errors.Is(err, ErrProviderUnavailable) {
		return "AI সেবা সাময়িকভাবে বন্ধ আছে। কিছুক্ষণ পরে আবার চেষ্টা করুন।"
	}
	if errors.Is(err, ErrTimeout) {
		return "AI উত্তর দিতে বেশি সময় নিয়েছে। আরও পরিষ্কার ছবি দিয়ে আবার চেষ্টা করুন।"
	}
	if !errors.As(err, &perr) {
		return "খাতা পড়া যায়নি। আবার চেষ্টা করুন।"
	}

	switch perr.Category {
	case "rate_limit":
		return "অনেক বেশি অনুরোধ এসেছে। ৩০-৬০ সেকেন্ড পরে আবার চেষ্টা করুন।"
	case "quota_exceeded":
		return "আজকের AI ব্যবহারের সীমা শেষ। আগামীকাল আবার চেষ্টা করুন।"
	case "unauthorized", "forbidden":
		return "AI সেবার অনুমতি নেই। অ্যাডমিনের সাথে যোগাযোগ করুন।"
	case "payload_too_large":
		return "ছবিগুলো অনেক বড়। ছোট ছবি দিন।"
	case "timeout":
		return "AI উত্তর দিতে বেশি সময় নিয়েছে। আরও পরিষ্কার ছবি দিয়ে আবার চেষ্টা করুন।"
	case "server_error", "network_error":
		return "AI সেবায় সংযোগ সমস্যা। কয়েক মিনিট পরে আবার চেষ্টা করুন।"
	default:
		return "খাতা পড়া যায়নি। আবার চেষ্টা করুন।"
	}
}
