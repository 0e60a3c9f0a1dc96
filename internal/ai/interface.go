// interface.go - Vision provider interface for supporting multiple AI providers

package ai

import (
	"context"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/processor"
)

// VisionProvider sends khata photos plus an instruction to a vision-capable model
// and returns the model's raw text reply. Parsing the reply is the caller's job.
type VisionProvider interface {
	ReadKhata(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error)

	// GetProviderName returns the name of the provider (e.g., "gemini", "mistral")
	GetProviderName() string
}

// VisionRequest is a single extraction call: one prompt, 1..N page images.
type VisionRequest struct {
	Prompt string
	Images []processor.ImageBlob
}

// VisionResult holds the raw reply of a vision call
type VisionResult struct {
	Text         string             `json:"-"`
	Provider     string             `json:"provider"`
	ModelName    string             `json:"model_name"`
	IsPartial    bool               `json:"is_partial"` // reply truncated by the output token limit
	FallbackUsed bool               `json:"fallback_used"`
	Tokens       *common.TokenUsage `json:"tokens,omitempty"`
}
