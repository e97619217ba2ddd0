package executor

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// MCPExecutor talks to tool servers over the model context protocol. A
// connection is opened per operation and closed when it returns; tool
// servers are external processes or endpoints and their lifetime is not
// ours to manage.
type MCPExecutor struct {
	impl    *mcp.Implementation
	metrics domain.Metrics
	logger  *zap.Logger
}

// ExecutorOptions configures optional executor collaborators.
type ExecutorOptions struct {
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// NewMCPExecutor creates an executor.
func NewMCPExecutor(opts ExecutorOptions) *MCPExecutor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &MCPExecutor{
		impl:    &mcp.Implementation{Name: "jitd", Version: "0.1.0"},
		metrics: metrics,
		logger:  logger.Named("executor"),
	}
}

// FetchSchemas connects to the server behind uri and returns every tool
// it advertises, full input schemas included. Tools without an object
// input schema are skipped.
func (e *MCPExecutor) FetchSchemas(ctx context.Context, uri string) ([]domain.ToolSchema, error) {
	const op = "executor.fetch_schemas"

	session, err := e.connect(ctx, uri)
	if err != nil {
		e.metrics.ObserveHydration(uri, err)
		return nil, err
	}
	defer session.Close()

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		err = domain.Wrap(domain.CodeUnavailable, op, err)
		e.metrics.ObserveHydration(uri, err)
		return nil, err
	}

	schemas := make([]domain.ToolSchema, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		if !isObjectSchema(tool.InputSchema) {
			e.logger.Warn("skip tool with invalid input schema",
				zap.String("tool", tool.Name),
				zap.String("uri", uri),
			)
			continue
		}
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			e.logger.Warn("skip tool with unmarshalable schema",
				zap.String("tool", tool.Name),
				zap.Error(err),
			)
			continue
		}
		schemas = append(schemas, domain.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: raw,
			URI:         uri,
		})
	}

	e.metrics.ObserveHydration(uri, nil)
	return schemas, nil
}

// Invoke dispatches one tool call to the server behind uri. Tool-level
// failures are reported in the outcome, not as an error; an error means
// the call never reached the tool.
func (e *MCPExecutor) Invoke(ctx context.Context, uri, toolName string, arguments json.RawMessage) (domain.ToolCallOutcome, error) {
	const op = "executor.invoke"

	outcome := domain.ToolCallOutcome{Name: toolName, Arguments: arguments}

	session, err := e.connect(ctx, uri)
	if err != nil {
		return outcome, err
	}
	defer session.Close()

	if len(arguments) == 0 {
		arguments = json.RawMessage(`{}`)
	}

	started := time.Now()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	elapsed := time.Since(started)
	if err != nil {
		e.metrics.ObserveToolCall(domain.CallStatusFailure, elapsed)
		return outcome, domain.Wrap(domain.CodeUnavailable, op, err)
	}

	outcome.Content = textContent(result)
	if result.IsError {
		outcome.Err = outcome.Content
		if outcome.Err == "" {
			outcome.Err = "tool reported an error"
		}
		outcome.Content = ""
		e.metrics.ObserveToolCall(domain.CallStatusFailure, elapsed)
		return outcome, nil
	}

	e.metrics.ObserveToolCall(domain.CallStatusSuccess, elapsed)
	return outcome, nil
}

func (e *MCPExecutor) connect(ctx context.Context, uri string) (*mcp.ClientSession, error) {
	const op = "executor.connect"

	loc, err := parseLocator(uri)
	if err != nil {
		return nil, err
	}

	var transport mcp.Transport
	switch loc.kind {
	case transportStdio:
		cmd := exec.CommandContext(ctx, loc.command, loc.args...)
		cmd.Env = os.Environ()
		transport = &mcp.CommandTransport{Command: cmd}
	case transportStreamableHTTP:
		transport = &mcp.StreamableClientTransport{Endpoint: loc.endpoint}
	}

	client := mcp.NewClient(e.impl, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	return session, nil
}

// textContent flattens the text parts of a call result.
func textContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func isObjectSchema(schema any) bool {
	if schema == nil {
		return false
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if typ, ok := obj["type"]; ok {
		if val, ok := typ.(string); ok {
			return strings.EqualFold(val, "object")
		}
	}
	return false
}
