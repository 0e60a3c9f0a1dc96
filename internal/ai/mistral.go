// mistral.go - Mistral vision (chat completions) client for khata extraction

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/ratelimit"
)

const mistralChatURL = "https://api.mistral.ai/v1/chat/completions"

// MistralProvider implements VisionProvider for Mistral vision models
type MistralProvider struct {
	apiKey    string
	modelName string
	endpoint  string
	client    *http.Client
	limiter   *ratelimit.RateLimiter
	retry     RetryConfig
}

// NewMistralProvider creates a new Mistral AI provider. limiter may be nil.
func NewMistralProvider(apiKey, modelName string, limiter *ratelimit.RateLimiter) *MistralProvider {
	return &MistralProvider{
		apiKey:    apiKey,
		modelName: modelName,
		endpoint:  mistralChatURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: limiter,
		retry:   DefaultRetryConfig,
	}
}

// GetProviderName returns "mistral"
func (m *MistralProvider) GetProviderName() string {
	return "mistral"
}

type mistralContentPart struct {
	Type     string `json:"type"` // "text" or "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralMessage struct {
	Role    string               `json:"role"`
	Content []mistralContentPart `json:"content"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []mistralMessage       `json:"messages"`
	Temperature    float64                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type mistralChatResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []mistralChoice `json:"choices"`
	Usage   mistralUsage    `json:"usage"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ReadKhata sends the prompt and every page as data URLs in one user message
func (m *MistralProvider) ReadKhata(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("mistral: no images in request")
	}
	reqCtx.LogInfo("🔷 Using Mistral AI provider (model: %s)", m.modelName)

	content := []mistralContentPart{{Type: "text", Text: req.Prompt}}
	for _, img := range req.Images {
		dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
		content = append(content, mistralContentPart{Type: "image_url", ImageURL: dataURL})
	}

	request := mistralChatRequest{
		Model:          m.modelName,
		Messages:       []mistralMessage{{Role: "user", Content: content}},
		Temperature:    0.1,
		MaxTokens:      8192,
		ResponseFormat: &mistralResponseFormat{Type: "json_object"},
	}

	reqCtx.StartSubStep("call_vision_model")
	var response *mistralChatResponse
	err := callWithRetry(ctx, m.GetProviderName(), reqCtx, m.retry, func(ctx context.Context) error {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		r, err := m.callChatAPI(ctx, request)
		if err != nil {
			return err
		}
		response = r
		return nil
	})
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, err
	}
	reqCtx.EndSubStep("")

	if len(response.Choices) == 0 {
		return nil, &ProviderError{
			Provider: m.GetProviderName(),
			Category: "empty_response",
			Message:  "no choices returned from Mistral API",
		}
	}

	choice := response.Choices[0]
	modelName := response.Model
	if modelName == "" {
		modelName = m.modelName
	}

	tokens := common.CalculateOCRTokenCost(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	result := &VisionResult{
		Text:      messageText(choice.Message.Content),
		Provider:  m.GetProviderName(),
		ModelName: modelName,
		IsPartial: choice.FinishReason == "length",
		Tokens:    &tokens,
	}

	reqCtx.LogInfo("📦 Received response: %d chars", len(result.Text))
	return result, nil
}

// messageText accepts both the plain string and the content-chunk array forms
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return ""
	}
	var b strings.Builder
	for _, c := range chunks {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// callChatAPI makes HTTP request to Mistral chat completions API
func (m *MistralProvider) callChatAPI(ctx context.Context, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		perr := &ProviderError{
			Provider:      m.GetProviderName(),
			OriginalError: fmt.Errorf("mistral API error (%d): %s", resp.StatusCode, string(body)),
		}
		apiMessage := string(body)
		var errorResp mistralErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil {
			if errorResp.Error.Message != "" {
				apiMessage = errorResp.Error.Message
			} else if errorResp.Message != "" {
				apiMessage = errorResp.Message
			}
		}
		categorizeStatus(perr, resp.StatusCode, apiMessage)
		return nil, perr
	}

	var response mistralChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}

	return &response, nil
}
