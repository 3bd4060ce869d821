package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type GenerationConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxToolRounds  int    `toml:"max_tool_rounds"`
}

// ToolDeclaration describes a tool offered by a plain HTTP tool proxy, which
// has no discovery call of its own.
type ToolDeclaration struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Properties  map[string]any `toml:"properties"`
	Required    []string       `toml:"required"`
}

type ToolProxyConfig struct {
	URL                   string            `toml:"url"`
	Transport             string            `toml:"transport"`
	ConnectTimeoutSeconds int               `toml:"connect_timeout_seconds"`
	Disabled              bool              `toml:"disabled"`
	Headers               map[string]string `toml:"headers,omitempty"`
	Tools                 []ToolDeclaration `toml:"tools,omitempty"`
}

type ClientConfig struct {
	Endpoint           string `toml:"endpoint"`
	SystemInstructions string `toml:"system_instructions"`
	MaxRetries         int    `toml:"max_retries"`
	RetryBackoffMS     int    `toml:"retry_backoff_ms"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Generation GenerationConfig `toml:"generation"`
	ToolProxy  ToolProxyConfig  `toml:"tool_proxy"`
	Client     ClientConfig     `toml:"client"`
}

var Debug = false
var DebugLog *log.Logger

// apiKeyEnvVars maps provider IDs to the environment variable holding their
// credential. Keys are never read from the config file.
var apiKeyEnvVars = map[string]string{
	"gemini":     "GEMINI_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
}

// APIKeyEnv returns the environment variable that holds the API key for a
// provider, or "" when the provider needs none (Ollama).
func APIKeyEnv(providerID string) string {
	return apiKeyEnvVars[providerID]
}

// APIKey returns the configured provider's API key from the environment.
func (c *Config) APIKey() string {
	env := APIKeyEnv(c.Generation.Provider)
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ToolProxy.ConnectTimeoutSeconds) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Client.RetryBackoffMS) * time.Millisecond
}

// ToolsEnabled reports whether a tool-proxy connection should be attempted.
func (c *Config) ToolsEnabled() bool {
	return !c.ToolProxy.Disabled && c.ToolProxy.URL != ""
}

func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	if provider := os.Getenv("ASKCITY_PROVIDER"); provider != "" {
		c.Generation.Provider = provider
	}
	if model := os.Getenv("ASKCITY_MODEL"); model != "" {
		c.Generation.Model = model
	}
	if url, ok := os.LookupEnv("MCP_SERVER_URL"); ok {
		c.ToolProxy.URL = url
	}
	if disabled := os.Getenv("MCP_DISABLED"); disabled == "true" || disabled == "1" {
		c.ToolProxy.Disabled = true
	}
	if endpoint := os.Getenv("ASKCITY_ENDPOINT"); endpoint != "" {
		c.Client.Endpoint = endpoint
	}
	if retries := os.Getenv("ASKCITY_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			c.Client.MaxRetries = n
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Generation.Provider == "" {
		return fmt.Errorf("generation.provider is required")
	}
	if c.Generation.TimeoutSeconds <= 0 {
		return fmt.Errorf("generation.timeout_seconds must be positive, got %d", c.Generation.TimeoutSeconds)
	}
	if c.Generation.MaxToolRounds < 1 {
		return fmt.Errorf("generation.max_tool_rounds must be at least 1, got %d", c.Generation.MaxToolRounds)
	}
	if c.ToolProxy.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("tool_proxy.connect_timeout_seconds must be positive, got %d", c.ToolProxy.ConnectTimeoutSeconds)
	}
	switch c.ToolProxy.Transport {
	case "sse", "streamable-http", "http":
	default:
		return fmt.Errorf("unknown tool_proxy.transport: %s", c.ToolProxy.Transport)
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must not be negative")
	}
	return nil
}

func CheckDebug() bool {
	debug := os.Getenv("ASKCITY_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog enables debug logging when ASKCITY_DEBUG is set. An empty
// path logs to stderr, which is what a hosted function runtime collects.
func InitDebugLog(logPath string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	out := os.Stderr
	if logPath != "" {
		// Create debug log with secure permissions (0600 - may contain prompts)
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		} else {
			out = f
		}
	}

	DebugLog = log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (ASKCITY_DEBUG=%s) ===", os.Getenv("ASKCITY_DEBUG"))
	if logPath != "" {
		DebugLog.Printf("Log path: %s", logPath)
	}
}

// Load reads the TOML file at path (or the default location when path is
// empty) on top of the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = GetConfigFilePath()
	}

	if FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
