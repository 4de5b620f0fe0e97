package ai

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// GeminiProvider implements LLMProvider for the Gemini generateContent API.
type GeminiProvider struct {
	cfg ProviderConfig
}

// Gemini API request/response structures
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// NewGeminiProvider creates a new Gemini adapter.
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		cfg: cfg.withDefaults("https://generativelanguage.googleapis.com/v1beta", "gemini-2.0-flash", 30*time.Second),
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "Gemini"
}

// IsAvailable checks if the API key is configured.
func (p *GeminiProvider) IsAvailable() bool {
	return p.cfg.APIKey != ""
}

// Complete sends a generateContent request.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !p.IsAvailable() {
		return nil, &ServiceError{Provider: p.Name(), Message: "API key not configured"}
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	gReq := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			gReq.Contents = append(gReq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			gReq.Contents = append(gReq.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		gReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	endpoint := p.cfg.BaseURL + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(p.cfg.APIKey)

	start := time.Now()
	body, err := postJSON(ctx, p.cfg.HTTPClient, p.Name(), endpoint, nil, gReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var gResp geminiResponse
	if err := json.Unmarshal(body, &gResp); err != nil {
		return nil, &ServiceError{Provider: p.Name(), Message: "failed to parse response", Err: err}
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, &ServiceError{Provider: p.Name(), Message: "no candidates returned"}
	}

	var text strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &ServiceError{Provider: p.Name(), Message: "empty reply"}
	}

	respModel := gResp.ModelVersion
	if respModel == "" {
		respModel = model
	}
	return &CompletionResponse{
		Content:      text.String(),
		Model:        respModel,
		PromptTokens: gResp.UsageMetadata.PromptTokenCount,
		OutputTokens: gResp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  gResp.UsageMetadata.TotalTokenCount,
		Latency:      latency,
		FinishReason: gResp.Candidates[0].FinishReason,
	}, nil
}

// Ensure GeminiProvider implements LLMProvider
var _ LLMProvider = (*GeminiProvider)(nil)
