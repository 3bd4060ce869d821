package provider

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"

	"askthecity/model"
)

func toolRound() []model.Message {
	return []model.Message{
		{Role: model.GenRoleUser, Content: "Where can I find bike lane data?"},
		{
			Role: model.GenRoleModel,
			ToolCalls: []model.ToolCall{{
				ID:        "call_1",
				Name:      "find_relevant_datasets",
				Arguments: map[string]any{"query": "bike lanes"},
			}},
		},
		{Role: model.GenRoleTool, Content: `["Cycling Network"]`, ToolCallID: "call_1", ToolName: "find_relevant_datasets"},
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"object", `{"query":"parks","limit":5}`, 2},
		{"empty string", ``, 0},
		{"null", `null`, 0},
		{"invalid", `{"query":`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolArguments(tt.in)
			if got == nil {
				t.Fatal("expected non-nil map")
			}
			if len(got) != tt.want {
				t.Errorf("got %d keys, want %d", len(got), tt.want)
			}
		})
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := ConvertToOpenAIMessages("Be brief.", toolRound(), toolNameForOpenRouter)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}

	if msgs[0].OfSystem == nil {
		t.Error("first message should be the system instruction")
	}
	if msgs[1].OfUser == nil {
		t.Error("second message should be the user turn")
	}

	assistant := msgs[2].OfAssistant
	if assistant == nil || len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected assistant turn with one tool call, got %+v", msgs[2])
	}
	fn := assistant.ToolCalls[0].OfFunction
	if fn.ID != "call_1" || fn.Function.Name != "find_relevant_datasets" {
		t.Errorf("tool call: %+v", fn)
	}
	if fn.Function.Arguments != `{"query":"bike lanes"}` {
		t.Errorf("arguments: %s", fn.Function.Arguments)
	}

	tool := msgs[3].OfTool
	if tool == nil || tool.ToolCallID != "call_1" {
		t.Errorf("tool message: %+v", msgs[3])
	}
}

func TestConvertToOpenAIMessagesNoSystem(t *testing.T) {
	msgs := ConvertToOpenAIMessages("", []model.Message{
		{Role: model.GenRoleUser, Content: "hi"},
		{Role: model.GenRoleModel, Content: "hello"},
	}, nil)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].OfAssistant == nil {
		t.Error("model turn should map to assistant")
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	round := append(toolRound(), model.Message{
		Role: model.GenRoleTool, Content: "second result", ToolCallID: "call_2",
	})
	msgs := convertToAnthropicMessages(round)

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("second message role: %s", msgs[1].Role)
	}
	if len(msgs[1].Content) != 1 || msgs[1].Content[0].OfToolUse == nil {
		t.Errorf("expected a single tool_use block, got %+v", msgs[1].Content)
	}

	// consecutive tool results share one user message
	if msgs[2].Role != anthropic.MessageParamRoleUser || len(msgs[2].Content) != 2 {
		t.Fatalf("expected merged tool results, got %+v", msgs[2])
	}
	for _, block := range msgs[2].Content {
		if block.OfToolResult == nil {
			t.Error("expected tool_result block")
		}
	}
}

func TestConvertToAnthropicMessagesSkipsEmpty(t *testing.T) {
	msgs := convertToAnthropicMessages([]model.Message{
		{Role: model.GenRoleUser, Content: ""},
		{Role: model.GenRoleModel, Content: ""},
		{Role: model.GenRoleUser, Content: "hello"},
	})
	if len(msgs) != 1 {
		t.Errorf("expected empty turns dropped, got %d messages", len(msgs))
	}
}

func TestConvertToOllamaMessages(t *testing.T) {
	msgs := ConvertToOllamaMessages("Be brief.", toolRound())

	want := []string{"system", "user", "assistant", "tool"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, role := range want {
		if msgs[i].Role != role {
			t.Errorf("message %d role: got %q, want %q", i, msgs[i].Role, role)
		}
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Name != "find_relevant_datasets" {
		t.Errorf("assistant tool calls: %+v", msgs[2].ToolCalls)
	}
	if msgs[3].ToolName != "find_relevant_datasets" {
		t.Errorf("tool name: %q", msgs[3].ToolName)
	}
}

func TestToolCallConversionRoundTrip(t *testing.T) {
	if ConvertToProviderToolCalls(nil) != nil || ConvertFromProviderToolCalls(nil) != nil {
		t.Error("expected nil for empty input")
	}

	ollamaCalls := []api.ToolCall{{
		Function: api.ToolCallFunction{
			Name:      "get_dataset_info",
			Arguments: map[string]any{"dataset_id": "ttc-ridership"},
		},
	}}
	calls := ConvertToProviderToolCalls(ollamaCalls)
	if len(calls) != 1 || calls[0].Name != "get_dataset_info" || calls[0].Arguments["dataset_id"] != "ttc-ridership" {
		t.Fatalf("unexpected calls: %+v", calls)
	}

	back := ConvertFromProviderToolCalls(calls)
	if back[0].Function.Name != "get_dataset_info" {
		t.Errorf("round trip name: %q", back[0].Function.Name)
	}
}

func TestOpenRouterToolNames(t *testing.T) {
	if got := toolNameForOpenRouter("toronto.find_relevant_datasets"); got != "toronto__find_relevant_datasets" {
		t.Errorf("encode: %q", got)
	}
	if got := toolNameFromOpenRouter("toronto__find_relevant_datasets"); got != "toronto.find_relevant_datasets" {
		t.Errorf("decode: %q", got)
	}
}
