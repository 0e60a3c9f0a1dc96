// factory.go - Vision provider factory for creating provider instances

package ai

import (
	"fmt"
	"log"
	"time"

	"github.com/bosocmputer/khata_ocr/configs"
	"github.com/bosocmputer/khata_ocr/internal/ratelimit"
)

// CreateVisionProvider creates a provider based on configuration
func CreateVisionProvider(name string, limiter *ratelimit.RateLimiter) (VisionProvider, error) {
	switch name {
	case "gemini":
		log.Printf("🔵 Creating Gemini vision provider (%s)", configs.OCR_MODEL_NAME)
		return NewGeminiProvider(configs.GEMINI_API_KEY, configs.OCR_MODEL_NAME, limiter), nil

	case "mistral":
		log.Printf("🔷 Creating Mistral vision provider (%s)", configs.MISTRAL_MODEL_NAME)
		return NewMistralProvider(configs.MISTRAL_API_KEY, configs.MISTRAL_MODEL_NAME, limiter), nil

	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s (supported: gemini, mistral)", name)
	}
}

// CreateGuardedProvider creates the configured primary provider, the opposite
// provider as fallback when its key is set, and wraps both in a Guard.
func CreateGuardedProvider() (*Guard, error) {
	limiter := ratelimit.NewRateLimiter(
		configs.RATE_LIMIT_TOKENS,
		time.Duration(configs.RATE_LIMIT_REFILL_SECONDS)*time.Second,
	)

	primary, err := CreateVisionProvider(configs.OCR_PROVIDER, limiter)
	if err != nil {
		return nil, err
	}

	var fallback VisionProvider
	switch primary.GetProviderName() {
	case "gemini":
		if configs.MISTRAL_API_KEY != "" {
			fallback = NewMistralProvider(configs.MISTRAL_API_KEY, configs.MISTRAL_MODEL_NAME, limiter)
			log.Printf("✅ Fallback provider configured: Mistral")
		}
	case "mistral":
		if configs.GEMINI_API_KEY != "" {
			fallback = NewGeminiProvider(configs.GEMINI_API_KEY, configs.OCR_MODEL_NAME, limiter)
			log.Printf("✅ Fallback provider configured: Gemini")
		}
	}

	return NewGuard(primary, fallback, GuardConfig{
		Timeout:          time.Duration(configs.AI_TIMEOUT) * time.Second,
		FailureThreshold: uint32(configs.BREAKER_FAILURE_THRESHOLD),
		OpenDuration:     time.Duration(configs.BREAKER_OPEN_SECONDS) * time.Second,
	}), nil
}
