package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "askthecity/config"
)

// remoteConnector opens MCP sessions over SSE or streamable HTTP.
type remoteConnector struct {
	config Config
}

type remoteSession struct {
	client *client.Client
	tools  []mcptypes.Tool
	url    string
}

// endpointURL appends the transport's conventional path unless the
// configured URL already points at it.
func endpointURL(base, transport string) string {
	base = strings.TrimSuffix(base, "/")
	suffix := "/sse"
	if transport == "streamable-http" {
		suffix = "/mcp"
	}
	if strings.HasSuffix(base, suffix) {
		return base
	}
	return base + suffix
}

func (rc *remoteConnector) Connect(ctx context.Context) (Session, error) {
	url := endpointURL(rc.config.URL, rc.config.Transport)

	var mcpClient *client.Client
	var err error

	switch rc.config.Transport {
	case "streamable-http":
		mcpClient, err = rc.createStreamableHttpClient(ctx, url)
	default:
		mcpClient, err = rc.createSSEClient(ctx, url)
	}
	if err != nil {
		return nil, err
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "askthecity",
				Version: "1.0.0",
			},
		},
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize tool proxy: %w", err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	if len(toolsResult.Tools) == 0 {
		_ = mcpClient.Close()
		return nil, ErrNoTools
	}

	if globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] Connected to %s (%s), %d tools", url, rc.config.Transport, len(toolsResult.Tools))
	}

	return &remoteSession{
		client: mcpClient,
		tools:  toolsResult.Tools,
		url:    url,
	}, nil
}

// createSSEClient creates a client with header-based auth (or no auth)
func (rc *remoteConnector) createSSEClient(ctx context.Context, url string) (*client.Client, error) {
	opts := []transport.ClientOption{
		transport.WithHTTPClient(rc.config.HTTPClient),
	}
	if len(rc.config.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(rc.config.Headers))
	}

	mcpClient, err := client.NewSSEMCPClient(url, opts...)
	if err != nil {
		return nil, err
	}

	// Start SSE transport (required before Initialize/ListTools).
	// The stream lives as long as ctx, so ctx must be the request context.
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	return mcpClient, nil
}

// createStreamableHttpClient creates a client with streamable HTTP transport
func (rc *remoteConnector) createStreamableHttpClient(ctx context.Context, url string) (*client.Client, error) {
	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPBasicClient(rc.config.HTTPClient),
	}
	if len(rc.config.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(rc.config.Headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(url, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	return mcpClient, nil
}

func (s *remoteSession) Tools() []mcptypes.Tool {
	return s.tools
}

func (s *remoteSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("tool proxy call failed: %w", err)
	}
	return ResultText(result)
}

func (s *remoteSession) Close() error {
	return s.client.Close()
}
