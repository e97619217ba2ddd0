package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

func connectClient(t *testing.T, ctx context.Context, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	return session
}

func newTestServer(t *testing.T) (*Server, *fakeExecutor) {
	t.Helper()
	exec := &fakeExecutor{schemas: weatherSchemas()}
	provider := NewProvider(&fakeSearcher{results: weatherResults()}, exec, ProviderOptions{})
	return NewServer(provider, zap.NewNop()), exec
}

func callText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ListsMetaTools(t *testing.T) {
	ctx := context.Background()
	server, _ := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 2)

	names := []string{res.Tools[0].Name, res.Tools[1].Name}
	assert.Contains(t, names, "jit.discover_tools")
	assert.Contains(t, names, "jit.invoke_tool")
}

func TestServer_DiscoverReturnsSchemas(t *testing.T) {
	ctx := context.Background()
	server, _ := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.discover_tools",
		Arguments: json.RawMessage(`{"query":"what is the weather"}`),
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Tools []domain.ToolSchema `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(callText(t, result)), &payload))
	require.Len(t, payload.Tools, 2)
	assert.Equal(t, "forecast", payload.Tools[0].Name)
	assert.Equal(t, "weather_api", payload.Tools[1].Name)
}

func TestServer_DiscoverRejectsEmptyQuery(t *testing.T) {
	ctx := context.Background()
	server, _ := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.discover_tools",
		Arguments: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_InvokeRequiresDiscovery(t *testing.T) {
	ctx := context.Background()
	server, exec := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.invoke_tool",
		Arguments: json.RawMessage(`{"toolName":"weather_api","arguments":{"city":"Oslo"}}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, callText(t, result), "not discovered")
	assert.Empty(t, exec.invoked)
}

func TestServer_InvokeAfterDiscovery(t *testing.T) {
	ctx := context.Background()
	server, exec := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	_, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.discover_tools",
		Arguments: json.RawMessage(`{"query":"weather"}`),
	})
	require.NoError(t, err)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.invoke_tool",
		Arguments: json.RawMessage(`{"toolName":"weather_api","arguments":{"city":"Oslo"}}`),
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "72F", callText(t, result))
	assert.Equal(t, []string{"mcp://python/weather#weather_api"}, exec.invoked)
}

func TestServer_InvokeRequiresToolName(t *testing.T) {
	ctx := context.Background()
	server, _ := newTestServer(t)

	session := connectClient(t, ctx, server.server)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "jit.invoke_tool",
		Arguments: json.RawMessage(`{"arguments":{}}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, callText(t, result), "toolName is required")
}
