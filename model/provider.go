package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts hosted generation APIs (Gemini, OpenAI, Anthropic,
// Ollama) using the provider-agnostic types of this package.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: the relay and server depend on model only, and provider
// implementations import model.
type Provider interface {
	// ChatWithTools streams one generation turn. Tools may be nil, in which
	// case the model is not offered any function declarations.
	ChatWithTools(ctx context.Context, systemInstruction string, messages []Message, tools []mcptypes.Tool, callback StreamCallback) error

	// GetModel returns the model name used for API calls.
	GetModel() string

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Delta is one increment of a streamed generation. Text deltas arrive in
// order; ToolCalls and Metadata are usually only set near the end of a turn.
type Delta struct {
	Text      string
	ToolCalls []ToolCall
	Metadata  *Metadata
}

// StreamCallback is called for each delta of a streamed response. Returning
// an error aborts the stream.
type StreamCallback func(delta Delta) error
