// Package provider implements model.Provider for the hosted generation APIs.
//
// Gemini, OpenAI and OpenRouter all speak the OpenAI chat completions
// protocol and share one streaming loop (openai_stream.go). Anthropic and
// Ollama use their own SDKs. Every provider reports the same deltas: text in
// order, then the turn's tool calls and metadata once the stream finishes.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeGemini,
//	    Model:  "gemini-2.0-flash",
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	})
//	if err != nil {
//	    // handle error
//	}
//	err = p.ChatWithTools(ctx, system, messages, tools, callback)
package provider

import (
	"errors"
	"net/http"
)

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeGemini     ProviderType = "gemini"
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// ErrMissingAPIKey is wrapped by constructors of hosted providers when no
// key was configured. The server reports it as a configuration error.
var ErrMissingAPIKey = errors.New("missing API key")

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama

	// HTTPClient carries outbound requests. Nil means an httpx client.
	HTTPClient *http.Client
}

// RequiresAPIKey reports whether the provider type needs a key.
func RequiresAPIKey(t ProviderType) bool {
	return t != ProviderTypeOllama
}
