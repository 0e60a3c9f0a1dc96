// gemini.go - Gemini vision provider for khata mark extraction

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements VisionProvider for Google Gemini
type GeminiProvider struct {
	apiKey    string
	modelName string
	limiter   *ratelimit.RateLimiter
	retry     RetryConfig
}

// NewGeminiProvider creates a new Gemini provider. limiter may be nil.
func NewGeminiProvider(apiKey, modelName string, limiter *ratelimit.RateLimiter) *GeminiProvider {
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
		limiter:   limiter,
		retry:     DefaultRetryConfig,
	}
}

// GetProviderName returns "gemini"
func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// ReadKhata sends all page images in a single GenerateContent call
func (g *GeminiProvider) ReadKhata(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("gemini: no images in request")
	}

	reqCtx.StartSubStep("init_gemini_client")
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.modelName)
	// Set explicit MaxOutputTokens to prevent silent truncation
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptr(int32(8192)),
	}
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = createKhataSchema()
	reqCtx.EndSubStep(fmt.Sprintf("model: %s", g.modelName))

	parts := []genai.Part{genai.Text(req.Prompt)}
	totalBytes := 0
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
		totalBytes += img.Size()
	}
	reqCtx.LogInfo("📄 %d page image(s), %.2f MB total", len(req.Images), float64(totalBytes)/(1024*1024))

	reqCtx.StartSubStep("call_vision_model")
	var resp *genai.GenerateContentResponse
	err = callWithRetry(ctx, g.GetProviderName(), reqCtx, g.retry, func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		r, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, err
	}
	reqCtx.EndSubStep("")

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if resp.PromptFeedback != nil {
			reqCtx.LogError("⚠️  PromptFeedback BlockReason: %v", resp.PromptFeedback.BlockReason)
		}
		return nil, &ProviderError{
			Provider: g.GetProviderName(),
			Category: "empty_response",
			Message:  "no candidates from Gemini API (possibly blocked)",
		}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := &VisionResult{
		Text:      text.String(),
		Provider:  g.GetProviderName(),
		ModelName: g.modelName,
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		result.IsPartial = true
		reqCtx.LogWarning("⚠️  Response was truncated (FinishReason: MAX_TOKENS)")
	}

	if resp.UsageMetadata != nil {
		tokens := common.CalculateOCRTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
		result.Tokens = &tokens
	}

	reqCtx.LogInfo("📦 Received response: %d chars", len(result.Text))
	return result, nil
}

// createKhataSchema asks for the extraction envelope. Totals are strings so the
// model transcribes what is written (Bengali digits, "absent") instead of guessing.
func createKhataSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"extractedMarks": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"rollNumber": {Type: genai.TypeString, Description: "Roll number as written"},
						"name":       {Type: genai.TypeString, Description: "Student name as written"},
						"totalMarks": {Type: genai.TypeString, Description: "Total marks as written"},
					},
					Required: []string{"rollNumber", "name", "totalMarks"},
				},
			},
			"warnings": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Problems reading the pages, e.g. a partially unreadable page",
			},
		},
		Required: []string{"extractedMarks"},
	}
}

// ptr is a helper function to get a pointer to an int32 value
func ptr(i int32) *int32 {
	return &i
}
