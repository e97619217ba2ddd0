package session

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"jitmcp/internal/domain"
)

// Context holds one session's mutable orchestration state: the candidate
// set from the current search pass and the confirmed, hydrated active
// tools. Every orchestrated turn owns its own Context; nothing here is
// process-global.
type Context struct {
	mu         sync.Mutex
	sessionID  string
	categories []string
	candidates []domain.SearchResult
	confirmed  map[string]struct{}
	active     map[string]domain.ToolSchema
}

// NewContext creates empty session state.
func NewContext(sessionID string) *Context {
	return &Context{
		sessionID: sessionID,
		confirmed: make(map[string]struct{}),
		active:    make(map[string]domain.ToolSchema),
	}
}

// SessionID returns the session identifier.
func (c *Context) SessionID() string {
	return c.sessionID
}

// SetCategories records the registry's category labels for prompt
// rendering at the intent stage.
func (c *Context) SetCategories(categories []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = append([]string(nil), categories...)
}

// SetCandidates replaces the candidate set wholesale. A fresh search
// invalidates any prior confirmation, so confirmed and active state are
// cleared: stale tools must never remain active across searches.
func (c *Context) SetCandidates(results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append([]domain.SearchResult(nil), results...)
	c.confirmed = make(map[string]struct{})
	c.active = make(map[string]domain.ToolSchema)
}

// Candidates returns a copy of the current candidate set.
func (c *Context) Candidates() []domain.SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SearchResult(nil), c.candidates...)
}

// Confirm marks the given names as confirmed and returns the subset that
// was actually present in the current candidates, in candidate order.
// Names absent from the candidates are silently dropped: the model asked
// for something no longer offered.
func (c *Context) Confirm(names []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		requested[name] = struct{}{}
	}

	var confirmed []string
	for _, candidate := range c.candidates {
		name := candidate.Metadata.Name
		if _, ok := requested[name]; !ok {
			continue
		}
		if _, dup := c.confirmed[name]; dup {
			continue
		}
		c.confirmed[name] = struct{}{}
		confirmed = append(confirmed, name)
	}
	return confirmed
}

// Hydrate attaches the full schema for a confirmed tool. Hydration of a
// name is atomic: the tool is either absent from the active set or fully
// hydrated.
func (c *Context) Hydrate(name string, schema domain.ToolSchema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.confirmed[name]; !ok {
		return domain.E(domain.CodeFailedPrecond, "session.hydrate", name, domain.ErrNotConfirmed)
	}
	schema.Name = name
	c.active[name] = schema
	return nil
}

// IsActive reports whether name is hydrated and exposed for calling.
func (c *Context) IsActive(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[name]
	return ok
}

// ActiveTool returns the hydrated schema for name.
func (c *Context) ActiveTool(name string) (domain.ToolSchema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	schema, ok := c.active[name]
	return schema, ok
}

// ActiveTools returns the hydrated schemas sorted by name.
func (c *Context) ActiveTools() []domain.ToolSchema {
	c.mu.Lock()
	defer c.mu.Unlock()
	tools := make([]domain.ToolSchema, 0, len(c.active))
	for _, schema := range c.active {
		tools = append(tools, schema)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Reset clears all session state for the next turn.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = nil
	c.confirmed = make(map[string]struct{})
	c.active = make(map[string]domain.ToolSchema)
}

// RenderFragment derives the model-facing context fragment for a stage.
// Pure function of the session state: each stage exposes only the minimal
// fields it needs, which is what keeps token usage bounded.
func (c *Context) RenderFragment(stage domain.Stage) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	switch stage {
	case domain.StageIdle, domain.StageIntentCheck:
		if len(c.categories) == 0 {
			return ""
		}
		sb.WriteString("Available tool categories: ")
		sb.WriteString(strings.Join(c.categories, ", "))
		sb.WriteString(". Request tools if needed.")

	case domain.StageSearching, domain.StageCandidateReview:
		if len(c.candidates) == 0 {
			return "No candidate tools found."
		}
		sb.WriteString("Candidate tools:\n")
		for _, candidate := range c.candidates {
			sb.WriteString("- ")
			sb.WriteString(candidate.Metadata.Name)
			sb.WriteString(": ")
			sb.WriteString(candidate.Metadata.Description)
			sb.WriteString("\n")
		}

	case domain.StageHydrating, domain.StageExecuting:
		names := make([]string, 0, len(c.active))
		for name := range c.active {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("Active tools:\n")
		for _, name := range names {
			schema := c.active[name]
			sb.WriteString("- ")
			sb.WriteString(name)
			if len(schema.InputSchema) > 0 {
				sb.WriteString(" ")
				sb.Write(compactJSON(schema.InputSchema))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
