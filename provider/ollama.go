package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"askthecity/config"
	"askthecity/mcp"
	"askthecity/model"
	"askthecity/ollama"
)

// OllamaProvider wraps ollama.Client to implement the Provider interface.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance. BaseURL defaults
// to a local server; no API key is needed.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{client: client}, nil
}

// ChatWithTools implements Provider.ChatWithTools. Tools are withheld from
// models without tool calling support, which would otherwise reject the
// request.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, systemInstruction string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	var ollamaTools []api.Tool
	if len(tools) > 0 {
		if p.client.SupportsToolCalling() {
			ollamaTools = mcp.ToOllamaTools(tools)
		} else if config.DebugLog != nil {
			config.DebugLog.Printf("[Ollama] Model '%s' has no tool support, withholding %d tools", p.client.GetModel(), len(tools))
		}
	}

	var calls []model.ToolCall
	meta := &model.Metadata{}
	var started streamStart

	err := p.client.ChatWithTools(ctx, ConvertToOllamaMessages(systemInstruction, messages), ollamaTools, func(resp api.ChatResponse) error {
		if err := started.mark(callback); err != nil {
			return err
		}
		for _, tc := range ConvertToProviderToolCalls(resp.Message.ToolCalls) {
			tc.ID = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			calls = append(calls, tc)
		}

		if resp.Done {
			meta.FinishReason = resp.DoneReason
			if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
				meta.UsageMetadata = &model.UsageMetadata{
					PromptTokenCount:     int64(resp.PromptEvalCount),
					CandidatesTokenCount: int64(resp.EvalCount),
					TotalTokenCount:      int64(resp.PromptEvalCount + resp.EvalCount),
				}
			}
		}

		if resp.Message.Content == "" {
			return nil
		}
		return emit(callback, model.Delta{Text: resp.Message.Content})
	})
	if err != nil {
		return fmt.Errorf("Ollama streaming error: %w", err)
	}

	if len(calls) == 0 && meta.IsEmpty() {
		return nil
	}
	return emit(callback, model.Delta{ToolCalls: calls, Metadata: meta})
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// Ping implements Provider.Ping by listing local models.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}
