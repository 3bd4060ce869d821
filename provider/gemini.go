package provider

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/model"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/openai/"
	geminiDefaultModel = "gemini-2.0-flash"
)

// GeminiProvider talks to Gemini through its OpenAI-compatible endpoint,
// the same way OpenRouter is reached through the OpenAI SDK.
type GeminiProvider struct {
	stream  openAIStream
	baseURL string
}

// NewGeminiProvider creates a Gemini provider. Model defaults to
// gemini-2.0-flash.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}

	return &GeminiProvider{
		stream: openAIStream{
			client: newOpenAIClient(cfg),
			model:  strings.TrimPrefix(cfg.Model, "models/"),
			label:  "Gemini",
		},
		baseURL: cfg.BaseURL,
	}, nil
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *GeminiProvider) ChatWithTools(ctx context.Context, systemInstruction string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	return p.stream.chat(ctx, systemInstruction, messages, tools, callback)
}

// GetModel implements Provider.GetModel.
func (p *GeminiProvider) GetModel() string {
	return p.stream.model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	return p.stream.ping(ctx)
}
