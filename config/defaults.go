package config

const DefaultToolProxyURL = "https://toronto-mcp.s-a62.workers.dev"

const DefaultSystemInstructions = `You are "Ask The City", a friendly assistant that helps people explore the City of Toronto's open data catalog.
Use the available tools to find relevant datasets before answering questions about city data.
Cite dataset names when you use them, keep answers short, and say so when the catalog has no relevant data.`

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8788",
		},
		Generation: GenerationConfig{
			Provider:       "gemini",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
			MaxToolRounds:  5,
		},
		ToolProxy: ToolProxyConfig{
			URL:                   DefaultToolProxyURL,
			Transport:             "sse",
			ConnectTimeoutSeconds: 5,
		},
		Client: ClientConfig{
			Endpoint:           "http://localhost:8788/api/generate",
			SystemInstructions: DefaultSystemInstructions,
			MaxRetries:         3,
			RetryBackoffMS:     1000,
		},
	}
}

func GenerateConfigTemplate() string {
	return `# Ask The City Configuration
# Location: ~/.config/askthecity/config.toml (override with ASKCITY_CONFIG)
# This file uses TOML format: https://toml.io
#
# API keys are read from the environment only:
#   GEMINI_API_KEY, OPENAI_API_KEY, OPENROUTER_API_KEY, ANTHROPIC_API_KEY

[server]
# Address the generate endpoint listens on (PORT overrides the port)
listen = ":8788"

[generation]
# One of: gemini, openai, openrouter, anthropic, ollama
provider = "gemini"
model = "gemini-2.0-flash"

# Optional base URL override (e.g. a local Ollama host)
# base_url = "http://localhost:11434"

# Bound on waiting for the first streamed delta of each generation call
timeout_seconds = 30

# Tool-call rounds per turn before tools are withheld
max_tool_rounds = 5

[tool_proxy]
# MCP server exposing the open data tools (MCP_SERVER_URL overrides)
url = "https://toronto-mcp.s-a62.workers.dev"

# One of: sse, streamable-http, http (plain JSON POST {tool, parameters})
transport = "sse"

# The turn proceeds without tools if the proxy does not connect in time
connect_timeout_seconds = 5

# Extra request headers for the tool proxy
# [tool_proxy.headers]
# Authorization = "Bearer ..."

# Tool declarations, only used by the plain "http" transport
# [[tool_proxy.tools]]
# name = "find_relevant_datasets"
# description = "Search the open data catalog"
# required = ["query"]
# [tool_proxy.tools.properties.query]
# type = "string"
# description = "Search terms"

[client]
# Endpoint used by "askthecity chat" and "askthecity ask"
endpoint = "http://localhost:8788/api/generate"

# Transient failures are retried this many times with a fixed backoff
max_retries = 3
retry_backoff_ms = 1000
`
}
