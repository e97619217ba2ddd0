package domain

import (
	"context"
	"encoding/json"
)

// ModelGateway abstracts the hosted language model. Implementations may
// suspend on network I/O; failures are surfaced, never silently defaulted.
type ModelGateway interface {
	// DetectIntent classifies whether the query needs tools. fragment is
	// the context-manager-rendered text injected alongside the query. A
	// detection failure halts the turn explicitly rather than masking tool
	// need.
	DetectIntent(ctx context.Context, userQuery, fragment string) (IntentResponse, error)

	// SelectTools asks the model to pick a subset of candidate tool names
	// for the query. Names outside the candidate set cause an error.
	SelectTools(ctx context.Context, userQuery string, candidates []SearchResult) ([]string, error)

	// GenerateToolCalls runs native function calling against the hydrated
	// schemas and returns the ordered calls the model produced.
	GenerateToolCalls(ctx context.Context, userQuery string, tools []ToolSchema) ([]ToolCallRequest, error)

	// Answer produces a direct answer for tool-free turns.
	Answer(ctx context.Context, userQuery string) (string, error)
}

// ToolExecutor abstracts schema hydration from and invocation on remote
// tool servers.
type ToolExecutor interface {
	// FetchSchemas connects to the server at uri and returns every tool
	// schema it advertises. Idempotent, safe to retry.
	FetchSchemas(ctx context.Context, uri string) ([]ToolSchema, error)

	// Invoke executes one tool call. At-most-once is not guaranteed here;
	// retries are the caller's decision since remote side effects may not
	// be idempotent.
	Invoke(ctx context.Context, uri, toolName string, arguments json.RawMessage) (ToolCallOutcome, error)
}

// Embedder turns texts into dense vectors for the semantic search
// strategy. The backing engine is an external collaborator.
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}
