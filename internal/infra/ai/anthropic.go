// Package ai - anthropic.go
// Anthropic messages adapter implementing the LLMProvider interface.
package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements LLMProvider for Anthropic Claude API.
type AnthropicProvider struct {
	cfg ProviderConfig
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider creates a new Claude adapter.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		cfg: cfg.withDefaults("https://api.anthropic.com/v1", "claude-3-5-haiku-latest", 60*time.Second),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "Anthropic"
}

// IsAvailable checks if the API key is configured.
func (p *AnthropicProvider) IsAvailable() bool {
	return p.cfg.APIKey != ""
}

// Complete sends a messages request to Claude.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !p.IsAvailable() {
		return nil, &ServiceError{Provider: p.Name(), Message: "API key not configured"}
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	// System prompts travel in their own field.
	var system []string
	var messages []anthropicMessage
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	aReq := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    messages,
		Temperature: req.Temperature,
	}

	start := time.Now()
	body, err := postJSON(ctx, p.cfg.HTTPClient, p.Name(), p.cfg.BaseURL+"/messages", map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}, aReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var aResp anthropicResponse
	if err := json.Unmarshal(body, &aResp); err != nil {
		return nil, &ServiceError{Provider: p.Name(), Message: "failed to parse response", Err: err}
	}

	var text strings.Builder
	for _, block := range aResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &ServiceError{Provider: p.Name(), Message: "no text content returned"}
	}

	return &CompletionResponse{
		Content:      text.String(),
		Model:        aResp.Model,
		PromptTokens: aResp.Usage.InputTokens,
		OutputTokens: aResp.Usage.OutputTokens,
		TotalTokens:  aResp.Usage.InputTokens + aResp.Usage.OutputTokens,
		Latency:      latency,
		FinishReason: aResp.StopReason,
	}, nil
}

// Ensure AnthropicProvider implements LLMProvider
var _ LLMProvider = (*AnthropicProvider)(nil)
