package provider

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/model"
)

// OpenRouterProvider connects to OpenRouter's API, which is OpenAI-compatible.
type OpenRouterProvider struct {
	stream  openAIStream
	baseURL string
}

// NewOpenRouterProvider creates a new OpenRouter provider instance.
func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.0-flash-001"
	}

	return &OpenRouterProvider{
		stream: openAIStream{
			client:     newOpenAIClient(cfg),
			model:      cfg.Model,
			label:      "OpenRouter",
			encodeName: toolNameForOpenRouter,
			decodeName: toolNameFromOpenRouter,
		},
		baseURL: cfg.BaseURL,
	}, nil
}

// toolNameForOpenRouter rewrites dotted tool names, which OpenRouter rejects
// (names must match ^[a-zA-Z0-9_-]{1,64}$).
// Example: "toronto.find_relevant_datasets" → "toronto__find_relevant_datasets"
func toolNameForOpenRouter(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

// toolNameFromOpenRouter reverses toolNameForOpenRouter.
func toolNameFromOpenRouter(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *OpenRouterProvider) ChatWithTools(ctx context.Context, systemInstruction string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	return p.stream.chat(ctx, systemInstruction, messages, tools, callback)
}

// GetModel implements Provider.GetModel.
// Returns the full model name with vendor prefix, e.g. "google/gemini-2.0-flash-001".
func (p *OpenRouterProvider) GetModel() string {
	return p.stream.model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	return p.stream.ping(ctx)
}
