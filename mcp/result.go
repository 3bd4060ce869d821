package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const emptyResult = "Tool executed successfully (no output)"

// ResultText flattens a tool result into the text handed back to the model.
// Text parts are joined by newlines, other parts are JSON encoded. Results
// flagged as errors are returned as errors carrying the same text.
func ResultText(result *mcptypes.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("tool returned no result")
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, c.Text)
		case *mcptypes.TextContent:
			parts = append(parts, c.Text)
		default:
			raw, err := json.Marshal(c)
			if err != nil {
				return "", fmt.Errorf("failed to encode tool content: %w", err)
			}
			parts = append(parts, string(raw))
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	if text == "" {
		return emptyResult, nil
	}
	return text, nil
}
