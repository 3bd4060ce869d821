package testutil

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/model"
)

// TestHistory returns a sample conversation, welcome messages included.
func TestHistory() []model.ChatMessage {
	return []model.ChatMessage{
		{Role: model.RoleAssistant, Content: "Hi there! Welcome to CivicFlowTO!"},
		{Role: model.RoleUser, Content: "How many parks are in Toronto?"},
		{Role: model.RoleAssistant, Content: "The Parks and Recreation Facilities dataset lists over 1,500 parks."},
	}
}

// SingleUserMessage returns a single user turn for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: model.GenRoleUser, Content: content}}
}

// ToolCallDelta is a delta requesting one tool.
func ToolCallDelta(id, name string, args map[string]any) model.Delta {
	return model.Delta{
		ToolCalls: []model.ToolCall{{ID: id, Name: name, Arguments: args}},
		Metadata:  &model.Metadata{FinishReason: "tool_calls"},
	}
}

// TextDeltas splits a reply into text deltas.
func TextDeltas(parts ...string) []model.Delta {
	deltas := make([]model.Delta, len(parts))
	for i, p := range parts {
		deltas[i] = model.Delta{Text: p}
	}
	return deltas
}

// TestMCPTools returns the open data tools used across tests
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "find_relevant_datasets",
			Description: "Search the City of Toronto open data catalog",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search terms",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "get_dataset_info",
			Description: "Describe a dataset and its resources",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"dataset_id": map[string]any{
						"type":        "string",
						"description": "Catalog package ID",
					},
				},
				Required: []string{"dataset_id"},
			},
		},
	}
}
