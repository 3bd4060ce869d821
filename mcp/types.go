package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "askthecity/config"
	"askthecity/httpx"
)

var (
	// ErrConnectTimeout is returned when the tool proxy does not connect
	// within the configured bound.
	ErrConnectTimeout = errors.New("tool proxy connection timeout")

	// ErrNoTools is returned when a tool proxy offers nothing to call.
	ErrNoTools = errors.New("tool proxy exposes no tools")
)

// Session is one request's connection to the tool proxy. It is acquired
// before generation starts and released exactly once when the response ends.
type Session interface {
	// Tools returns the tool declarations offered to the model.
	Tools() []mcptypes.Tool

	// CallTool runs a tool synchronously and returns its textual result.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)

	Close() error
}

// Connector opens tool-proxy sessions.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Config struct {
	URL       string
	Transport string // "sse", "streamable-http" or "http"
	Headers   map[string]string
	Tools     []globalconfig.ToolDeclaration

	// HTTPClient is used for every request to the proxy, wrapped by httpx.
	// Nil means an httpx client without an overall timeout.
	HTTPClient *http.Client
}

// ConfigFromApp extracts the tool-proxy settings from the application config.
func ConfigFromApp(cfg *globalconfig.Config) Config {
	return Config{
		URL:       cfg.ToolProxy.URL,
		Transport: cfg.ToolProxy.Transport,
		Headers:   cfg.ToolProxy.Headers,
		Tools:     cfg.ToolProxy.Tools,
	}
}

// NewConnector returns the connector for the configured transport.
func NewConnector(cfg Config) (Connector, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("tool proxy URL is required")
	}
	cfg.HTTPClient = httpx.Wrap(cfg.HTTPClient)

	// Default to SSE if transport not specified
	transport := cfg.Transport
	if transport == "" {
		transport = "sse"
	}

	switch transport {
	case "sse", "streamable-http":
		cfg.Transport = transport
		return &remoteConnector{config: cfg}, nil
	case "http":
		return &httpConnector{config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown transport type: %s", transport)
	}
}
