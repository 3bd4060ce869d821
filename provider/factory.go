package provider

import (
	"fmt"

	"askthecity/config"
	"askthecity/httpx"
	"askthecity/model"
)

// NewProvider creates a provider based on configuration.
//
// Returns an error wrapping ErrMissingAPIKey when a hosted provider has no
// key, or a plain error for unknown provider types.
func NewProvider(cfg Config) (model.Provider, error) {
	cfg.HTTPClient = httpx.Wrap(cfg.HTTPClient)

	switch cfg.Type {
	case ProviderTypeGemini:
		return NewGeminiProvider(cfg)
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg)
	case ProviderTypeOpenRouter:
		return NewOpenRouterProvider(cfg)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts config provider ID to factory ProviderType.
// For unknown IDs, returns the ID cast as ProviderType (factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "gemini":
		return ProviderTypeGemini
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}

// FromConfig builds the configured generation provider. The API key is read
// from the environment on every call so a rotated secret takes effect on
// the next request.
func FromConfig(cfg *config.Config) (model.Provider, error) {
	p, err := NewProvider(Config{
		Type:    MapProviderIDToType(cfg.Generation.Provider),
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		APIKey:  cfg.APIKey(),
	})
	if err != nil {
		return nil, err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Using %s model %s", cfg.Generation.Provider, p.GetModel())
	}
	return p, nil
}
