package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/mcp"
	"askthecity/model"
)

// AnthropicProvider implements the Provider interface using Anthropic's official API.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
// BaseURL defaults to "https://api.anthropic.com".
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required: %w", ErrMissingAPIKey)
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: cfg.BaseURL,
	}, nil
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, systemInstruction string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  convertToAnthropicMessages(messages),
		MaxTokens: 4096, // Required by Anthropic API
	}
	if systemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemInstruction}}
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToAnthropicTools(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	var started streamStart
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("error accumulating message: %w", err)
		}
		if err := started.mark(callback); err != nil {
			return err
		}

		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				if err := emit(callback, model.Delta{Text: text.Text}); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}

	meta := &model.Metadata{FinishReason: string(msg.StopReason)}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		meta.UsageMetadata = &model.UsageMetadata{
			PromptTokenCount:     msg.Usage.InputTokens,
			CandidatesTokenCount: msg.Usage.OutputTokens,
			TotalTokenCount:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		}
	}
	if msg.StopReason == "refusal" {
		meta.SafetyRatings = append(meta.SafetyRatings, model.SafetyRating{
			Category: "refusal",
			Blocked:  true,
		})
	}

	final := model.Delta{
		ToolCalls: extractToolCalls(msg.Content),
		Metadata:  meta,
	}
	if len(final.ToolCalls) == 0 && meta.IsEmpty() {
		return nil
	}
	return emit(callback, final)
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// Ping implements Provider.Ping by attempting to create a minimal request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	// Anthropic doesn't have a ping/health endpoint, so we make a minimal request
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
