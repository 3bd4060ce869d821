package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// httpConnector talks to tool proxies that expose a single JSON endpoint:
// POST {tool, parameters} -> {result} | {error}. Such proxies have no
// discovery call, so the tool declarations come from configuration.
type httpConnector struct {
	config Config
}

type httpSession struct {
	config Config
	tools  []mcptypes.Tool
}

type httpToolRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

type httpToolResponse struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (hc *httpConnector) Connect(ctx context.Context) (Session, error) {
	tools := ToolsFromDeclarations(hc.config.Tools)
	if len(tools) == 0 {
		return nil, ErrNoTools
	}
	return &httpSession{config: hc.config, tools: tools}, nil
}

func (s *httpSession) Tools() []mcptypes.Tool {
	return s.tools
}

func (s *httpSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(httpToolRequest{Tool: name, Parameters: args})
	if err != nil {
		return "", fmt.Errorf("failed to encode tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool %s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tool %s response: %w", name, err)
	}

	var out httpToolResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("tool %s returned invalid JSON (status %d): %w", name, resp.StatusCode, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("tool %s: %s", name, out.Error)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("tool %s returned status %d", name, resp.StatusCode)
	}

	switch v := out.Result.(type) {
	case nil:
		return emptyResult, nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool %s result: %w", name, err)
		}
		return string(b), nil
	}
}

func (s *httpSession) Close() error {
	return nil
}
