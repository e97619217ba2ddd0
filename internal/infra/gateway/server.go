package gateway

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// Server exposes the discover/invoke meta-tools over MCP so an outer
// agent can pull tool schemas into its own context on demand.
type Server struct {
	provider *Provider
	server   *mcp.Server
	logger   *zap.Logger
}

// NewServer wires the meta-tools onto a fresh MCP server.
func NewServer(provider *Provider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		provider: provider,
		logger:   logger.Named("gateway"),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "jitd-gateway",
		Version: "0.1.0",
	}, &mcp.ServerOptions{
		HasTools: true,
	})

	discover := DiscoverTool()
	s.server.AddTool(&discover, s.handleDiscover)
	invoke := InvokeTool()
	s.server.AddTool(&invoke, s.handleInvoke)

	return s
}

// Run serves until ctx is canceled. Serve mode binds stdin/stdout.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("gateway starting (stdio transport)")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleDiscover(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return errorResult("invalid arguments: " + err.Error()), nil
		}
	}

	schemas, err := s.provider.DiscoverAndHydrate(ctx, params.Query, params.Limit)
	if err != nil {
		s.logger.Warn("discover failed", zap.String("query", params.Query), zap.Error(err))
		return errorResult(err.Error()), nil
	}

	payload, err := json.Marshal(struct {
		Tools []domain.ToolSchema `json:"tools"`
	}{Tools: schemas})
	if err != nil {
		return nil, err
	}
	return textResult(string(payload)), nil
}

func (s *Server) handleInvoke(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		ToolName  string          `json:"toolName"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return errorResult("invalid arguments: " + err.Error()), nil
		}
	}
	if params.ToolName == "" {
		return errorResult("toolName is required"), nil
	}

	outcome, err := s.provider.Execute(ctx, params.ToolName, params.Arguments)
	if err != nil {
		s.logger.Warn("invoke failed", zap.String("tool", params.ToolName), zap.Error(err))
		return errorResult(err.Error()), nil
	}
	if outcome.Err != "" {
		return errorResult(outcome.Err), nil
	}
	return textResult(outcome.Content), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}
