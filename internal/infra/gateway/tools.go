package gateway

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DiscoverTool returns the MCP tool definition for jit.discover_tools.
func DiscoverTool() mcp.Tool {
	return mcp.Tool{
		Name:        "jit.discover_tools",
		Description: "Use this first whenever the current task might need external tools. Provide a natural-language query describing what you want to accomplish; the registry is searched and the matching tool schemas are fetched from their servers and returned ready to call. Only tools returned here can be invoked with jit.invoke_tool; example: query=\"look up current weather\", limit=3.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Description of the task you need to accomplish. Tools are ranked by relevance to this text.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of tools to return. Omit for the server default.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// InvokeTool returns the MCP tool definition for jit.invoke_tool.
func InvokeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "jit.invoke_tool",
		Description: "Invoke a concrete tool that you previously discovered via jit.discover_tools. Pass the exact toolName and arguments matching the advertised input schema (JSON object). Tools that were never discovered on this connection are rejected; discover first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"toolName": map[string]any{
					"type":        "string",
					"description": "The name of the tool to execute (as returned by discover_tools).",
				},
				"arguments": map[string]any{
					"type":        "object",
					"description": "Arguments to pass to the tool, matching its input schema.",
				},
			},
			"required": []string{"toolName", "arguments"},
		},
	}
}
