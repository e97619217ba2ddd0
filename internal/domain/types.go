package domain

import "encoding/json"

// ToolMetadata is the lightweight registry record for a tool. It carries
// just enough to discover the tool; the full callable schema is hydrated
// from the tool server on demand.
type ToolMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URI         string `json:"uri"`
	Category    string `json:"category,omitempty"`
	// Seq is the registration sequence assigned by the registry. It is
	// preserved across replace-by-name updates and used for stable
	// tie-breaking in lexical search.
	Seq uint64 `json:"seq,omitempty"`
}

// SearchResult is a ranked view over ToolMetadata, produced fresh per
// query. Scores are strategy-local and not comparable across strategies.
type SearchResult struct {
	Metadata ToolMetadata
	Score    float64
	Rank     int
}

// SearchFilters narrow a search pass.
type SearchFilters struct {
	// Category restricts results to tools whose category matches exactly.
	Category string
	// Limit caps the number of results. Zero means the service default.
	Limit int
}

// IntentResponse is the structured output of intent classification.
type IntentResponse struct {
	NeedsTools     bool     `json:"needs_tools"`
	ToolCategories []string `json:"tool_categories"`
	SearchQuery    string   `json:"search_query"`
	// Thought is free-text rationale, kept for observability only.
	Thought string `json:"thought"`
}

// ToolSchema is a fully hydrated tool definition ready for function
// calling. URI records the server the schema was fetched from so the
// executor can route invocations back to it.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	URI         string          `json:"uri,omitempty"`
}

// ToolCallRequest is one function call produced by the model.
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallOutcome is the per-call status of a dispatched (or rejected)
// tool call. One failing call never hides its siblings.
type ToolCallOutcome struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Content   string          `json:"content,omitempty"`
	Err       string          `json:"error,omitempty"`
	// Rejected marks calls that referenced a tool absent from the active
	// set. They are never forwarded to the executor.
	Rejected bool `json:"rejected,omitempty"`
}

// TurnResult aggregates a single orchestrated turn.
type TurnResult struct {
	ID         string            `json:"id"`
	Answer     string            `json:"answer,omitempty"`
	Intent     IntentResponse    `json:"intent"`
	Candidates int               `json:"candidates"`
	Confirmed  []string          `json:"confirmed,omitempty"`
	Calls      []ToolCallOutcome `json:"calls,omitempty"`
	// Degraded carries a human-readable reason when the turn completed
	// without full tool capability (search backend down, nothing
	// confirmed, hydration failed). Never silently empty on capability
	// loss.
	Degraded string `json:"degraded,omitempty"`
}
