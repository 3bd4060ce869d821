package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"

	"askthecity/mcp"
	"askthecity/model"
)

// openAIStream is the chat completions loop shared by every provider that
// speaks the OpenAI protocol.
type openAIStream struct {
	client openai.Client
	model  string
	label  string

	// Optional tool name rewriting for APIs with stricter name rules.
	encodeName func(string) string
	decodeName func(string) string
}

func (s *openAIStream) chat(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(system, messages, s.encodeName),
		Model:    openai.ChatModel(s.model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	if len(tools) > 0 {
		if s.encodeName != nil {
			tools = renameTools(tools, s.encodeName)
		}
		params.Tools = mcp.ToOpenAITools(tools)
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	meta := &model.Metadata{}
	var started streamStart

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if err := started.mark(callback); err != nil {
			return err
		}

		if chunk.Usage.TotalTokens > 0 {
			meta.UsageMetadata = &model.UsageMetadata{
				PromptTokenCount:     chunk.Usage.PromptTokens,
				CandidatesTokenCount: chunk.Usage.CompletionTokens,
				TotalTokenCount:      chunk.Usage.TotalTokens,
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			meta.FinishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			if err := emit(callback, model.Delta{Text: choice.Delta.Content}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s streaming error: %w", s.label, err)
	}

	if meta.FinishReason == "content_filter" {
		meta.SafetyRatings = append(meta.SafetyRatings, model.SafetyRating{
			Category: "content_filter",
			Blocked:  true,
		})
	}

	final := model.Delta{Metadata: meta}
	if len(acc.Choices) > 0 {
		for _, tc := range acc.Choices[0].Message.ToolCalls {
			name := tc.Function.Name
			if s.decodeName != nil {
				name = s.decodeName(name)
			}
			id := tc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			final.ToolCalls = append(final.ToolCalls, model.ToolCall{
				ID:        id,
				Name:      name,
				Arguments: ParseToolArguments(tc.Function.Arguments),
			})
		}
	}

	if len(final.ToolCalls) == 0 && meta.IsEmpty() {
		return nil
	}
	return emit(callback, final)
}

func (s *openAIStream) ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", s.label, err)
	}
	return nil
}

func renameTools(tools []mcptypes.Tool, rename func(string) string) []mcptypes.Tool {
	out := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		out[i] = tool
		out[i].Name = rename(tool.Name)
	}
	return out
}

// streamStart sends one empty delta when the vendor stream yields its first
// chunk. Tool calls are only reported once the stream ends, so without it a
// tool-call-only reply would look idle to the callback until then.
type streamStart struct {
	sent bool
}

func (s *streamStart) mark(callback model.StreamCallback) error {
	if s.sent {
		return nil
	}
	s.sent = true
	return emit(callback, model.Delta{})
}

func emit(callback model.StreamCallback, d model.Delta) error {
	if callback == nil {
		return nil
	}
	return callback(d)
}
