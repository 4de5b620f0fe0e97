// Package ai - openai.go
// OpenAI chat completions adapter implementing the LLMProvider interface.
package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// OpenAIProvider implements LLMProvider for OpenAI API.
type OpenAIProvider struct {
	cfg ProviderConfig
}

// OpenAI API request/response structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

// NewOpenAIProvider creates a new OpenAI adapter.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg: cfg.withDefaults("https://api.openai.com/v1", "gpt-4o-mini", 60*time.Second),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "OpenAI"
}

// IsAvailable checks if the API key is configured.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.cfg.APIKey != ""
}

// Complete sends a completion request to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !p.IsAvailable() {
		return nil, &ServiceError{Provider: p.Name(), Message: "API key not configured"}
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]openAIMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openAIMessage{Role: m.Role, Content: m.Content}
	}

	oaiReq := openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	start := time.Now()
	body, err := postJSON(ctx, p.cfg.HTTPClient, p.Name(), p.cfg.BaseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}, oaiReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var oaiResp openAIResponse
	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return nil, &ServiceError{Provider: p.Name(), Message: "failed to parse response", Err: err}
	}

	if len(oaiResp.Choices) == 0 {
		return nil, &ServiceError{Provider: p.Name(), Message: "no response choices returned"}
	}
	content := oaiResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, &ServiceError{Provider: p.Name(), Message: "empty reply"}
	}

	return &CompletionResponse{
		Content:      content,
		Model:        oaiResp.Model,
		PromptTokens: oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		TotalTokens:  oaiResp.Usage.TotalTokens,
		Latency:      latency,
		FinishReason: oaiResp.Choices[0].FinishReason,
	}, nil
}

// Ensure OpenAIProvider implements LLMProvider
var _ LLMProvider = (*OpenAIProvider)(nil)
