package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	globalconfig "askthecity/config"
)

// DatasetSearchTool is offered by plain HTTP proxies that declare no tools.
var DatasetSearchTool = globalconfig.ToolDeclaration{
	Name:        "find_relevant_datasets",
	Description: "Search the City of Toronto open data catalog for datasets relevant to a question",
	Properties: map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Search terms describing the data the user is asking about",
		},
	},
	Required: []string{"query"},
}

// ToolsFromDeclarations builds MCP tool definitions from configured
// declarations, falling back to the dataset search tool.
func ToolsFromDeclarations(decls []globalconfig.ToolDeclaration) []mcptypes.Tool {
	if len(decls) == 0 {
		decls = []globalconfig.ToolDeclaration{DatasetSearchTool}
	}

	tools := make([]mcptypes.Tool, 0, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			continue
		}
		props := d.Properties
		if props == nil {
			props = map[string]any{}
		}
		tools = append(tools, mcptypes.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: mcptypes.ToolInputSchema{
				Type:       "object",
				Properties: props,
				Required:   d.Required,
			},
		})
	}
	return tools
}

// ToOllamaTools converts MCP tools to Ollama API tool format
func ToOllamaTools(mcpTools []mcptypes.Tool) []api.Tool {
	if len(mcpTools) == 0 {
		return nil
	}

	tools := make([]api.Tool, 0, len(mcpTools))
	for _, tool := range mcpTools {
		params := api.ToolFunctionParameters{
			Type:       tool.InputSchema.Type,
			Required:   tool.InputSchema.Required,
			Properties: make(map[string]api.ToolProperty, len(tool.InputSchema.Properties)),
		}
		if tool.InputSchema.Defs != nil {
			params.Defs = tool.InputSchema.Defs
		}
		for name, value := range tool.InputSchema.Properties {
			params.Properties[name] = toOllamaProperty(value)
		}

		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// toOllamaProperty converts one JSON Schema property. Values that are not
// already maps go through a JSON round trip first.
func toOllamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}

	schema, ok := value.(map[string]any)
	if !ok {
		raw, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return prop
		}
	}

	// type may be a string or a list of strings
	switch t := schema["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		prop.Type = api.PropertyType(types)
	}

	if desc, ok := schema["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := schema["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := schema["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := schema["anyOf"].([]any); ok {
		variants := make([]api.ToolProperty, 0, len(anyOf))
		for _, v := range anyOf {
			variants = append(variants, toOllamaProperty(v))
		}
		prop.AnyOf = variants
	}

	return prop
}

// ToOpenAITools converts MCP tools to the function-tool format shared by
// OpenAI, OpenRouter and Gemini's OpenAI-compatible endpoint.
func ToOpenAITools(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		params := openai.FunctionParameters{
			"type":       schemaType(tool.InputSchema.Type),
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  params,
		})
	}
	return result
}

// ToAnthropicTools converts MCP tools to Anthropic tool params.
func ToAnthropicTools(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		// Type defaults to "object" when omitted
		schema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			schema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			schema.ExtraFields = map[string]any{"$defs": tool.InputSchema.Defs}
		}

		result[i] = anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return result
}

func schemaType(t string) string {
	if t == "" {
		return "object"
	}
	return t
}
