package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("MCP_SERVER_URL", DefaultToolProxyURL)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %q", cfg.Generation.Provider)
	}
	if cfg.GenerationTimeout() != 30*time.Second {
		t.Errorf("expected 30s generation timeout, got %v", cfg.GenerationTimeout())
	}
	if cfg.ConnectTimeout() != 5*time.Second {
		t.Errorf("expected 5s connect timeout, got %v", cfg.ConnectTimeout())
	}
	if cfg.Client.MaxRetries != 3 || cfg.RetryBackoff() != time.Second {
		t.Errorf("unexpected retry policy: %d / %v", cfg.Client.MaxRetries, cfg.RetryBackoff())
	}
	if !cfg.ToolsEnabled() {
		t.Error("tools should be enabled with the default proxy URL")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[generation]
provider = "openai"
model = "gpt-4o-mini"
timeout_seconds = 12
max_tool_rounds = 2

[tool_proxy]
url = "http://localhost:9000"
transport = "http"
connect_timeout_seconds = 2

[[tool_proxy.tools]]
name = "find_relevant_datasets"
description = "Search the catalog"
required = ["query"]
[tool_proxy.tools.properties.query]
type = "string"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ASKCITY_MODEL", "gpt-4.1")
	t.Setenv("PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.Provider != "openai" {
		t.Errorf("provider: got %q, want openai", cfg.Generation.Provider)
	}
	if cfg.Generation.Model != "gpt-4.1" {
		t.Errorf("env override for model not applied, got %q", cfg.Generation.Model)
	}
	if cfg.Server.Listen != ":9999" {
		t.Errorf("PORT override not applied, got %q", cfg.Server.Listen)
	}
	if cfg.GenerationTimeout() != 12*time.Second {
		t.Errorf("timeout: got %v", cfg.GenerationTimeout())
	}
	if len(cfg.ToolProxy.Tools) != 1 || cfg.ToolProxy.Tools[0].Name != "find_relevant_datasets" {
		t.Fatalf("tool declarations not decoded: %+v", cfg.ToolProxy.Tools)
	}
	if _, ok := cfg.ToolProxy.Tools[0].Properties["query"]; !ok {
		t.Error("tool property 'query' not decoded")
	}
}

func TestMCPDisabledEnv(t *testing.T) {
	t.Setenv("MCP_DISABLED", "1")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ToolsEnabled() {
		t.Error("MCP_DISABLED=1 should disable tools")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		expectErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty provider", func(c *Config) { c.Generation.Provider = "" }, true},
		{"zero timeout", func(c *Config) { c.Generation.TimeoutSeconds = 0 }, true},
		{"zero tool rounds", func(c *Config) { c.Generation.MaxToolRounds = 0 }, true},
		{"unknown transport", func(c *Config) { c.ToolProxy.Transport = "carrier-pigeon" }, true},
		{"negative retries", func(c *Config) { c.Client.MaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	cfg := DefaultConfig()
	cfg.Generation.Provider = "anthropic"
	if got := cfg.APIKey(); got != "sk-ant-test" {
		t.Errorf("APIKey() = %q", got)
	}

	cfg.Generation.Provider = "ollama"
	if got := cfg.APIKey(); got != "" {
		t.Errorf("ollama should not need a key, got %q", got)
	}
}

func TestConfigTemplateParses(t *testing.T) {
	cfg := &Config{}
	if _, err := toml.Decode(GenerateConfigTemplate(), cfg); err != nil {
		t.Fatalf("template is not valid TOML: %v", err)
	}
	if cfg.Generation.Provider != "gemini" {
		t.Errorf("template provider: got %q", cfg.Generation.Provider)
	}
}

func TestWriteConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	written, err := WriteConfigTemplate(path)
	if err != nil || !written {
		t.Fatalf("first write: written=%v err=%v", written, err)
	}

	written, err = WriteConfigTemplate(path)
	if err != nil || written {
		t.Errorf("second write should be a no-op: written=%v err=%v", written, err)
	}
}
