package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"askthecity/config"
	"askthecity/model"
)

// ParseToolArguments parses JSON arguments string into a map.
// Used by the OpenAI-compatible providers for tool call parsing.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		// If parsing fails, return empty map
		return make(map[string]any)
	}
	return args
}

func encodeArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// ConvertToOpenAIMessages converts generation turns to OpenAI format. The
// system instruction, when set, becomes the leading system message. Model
// turns that requested tools keep their tool calls so the following tool
// messages can reference them by ID.
func ConvertToOpenAIMessages(system string, messages []model.Message, encodeName func(string) string) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	name := func(n string) string {
		if encodeName == nil {
			return n
		}
		return encodeName(n)
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.GenRoleModel, model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      name(tc.Name),
							Arguments: encodeArguments(tc.Arguments),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case model.GenRoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

// convertToAnthropicMessages converts generation turns to Anthropic format.
// Consecutive tool results are merged into one user message, which the
// Messages API requires after a multi-tool assistant turn.
func convertToAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.GenRoleModel, model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		case model.GenRoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if n := len(result); n > 0 && result[n-1].Role == anthropic.MessageParamRoleUser && isToolResultMessage(result[n-1]) {
				result[n-1].Content = append(result[n-1].Content, block)
				continue
			}
			result = append(result, anthropic.NewUserMessage(block))

		default:
			if msg.Content == "" {
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return result
}

func isToolResultMessage(m anthropic.MessageParam) bool {
	for _, block := range m.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(m.Content) > 0
}

// extractToolCalls extracts tool calls from Anthropic message content.
func extractToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil || args == nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Anthropic] Tool call %s has unparseable input %q: %v", toolUse.Name, string(toolUse.Input), err)
			}
			args = map[string]any{}
		}
		toolCalls = append(toolCalls, model.ToolCall{
			ID:        toolUse.ID,
			Name:      toolUse.Name,
			Arguments: args,
		})
	}

	return toolCalls
}

// ConvertToOllamaMessages converts generation turns to Ollama api.Message,
// with the system instruction as the leading system message.
func ConvertToOllamaMessages(system string, messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		result = append(result, api.Message{Role: "system", Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.GenRoleModel, model.RoleAssistant:
			result = append(result, api.Message{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: ConvertFromProviderToolCalls(msg.ToolCalls),
			})
		case model.GenRoleTool:
			result = append(result, api.Message{
				Role:     "tool",
				Content:  msg.Content,
				ToolName: msg.ToolName,
			})
		default:
			result = append(result, api.Message{Role: "user", Content: msg.Content})
		}
	}
	return result
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to provider-agnostic
// model.ToolCall. Ollama does not assign call IDs, so IDs are left to the
// caller. Returns nil for empty input.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall to Ollama api.ToolCall.
// Returns nil for empty input.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}
