package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"askthecity/model"
)

// OpenAIProvider implements the Provider interface using OpenAI's official API.
type OpenAIProvider struct {
	stream  openAIStream
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
// BaseURL defaults to "https://api.openai.com/v1" and Model to "gpt-4o-mini".
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		stream: openAIStream{
			client: newOpenAIClient(cfg),
			model:  cfg.Model,
			label:  "OpenAI",
		},
		baseURL: cfg.BaseURL,
	}, nil
}

func newOpenAIClient(cfg Config) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return openai.NewClient(opts...)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, systemInstruction string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	return p.stream.chat(ctx, systemInstruction, messages, tools, callback)
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.stream.model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	return p.stream.ping(ctx)
}
