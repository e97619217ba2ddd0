package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// searcher is the slice of the search service the provider needs.
type searcher interface {
	Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error)
}

// Provider backs the serve-mode meta-tools. The outer agent drives the
// discover/invoke split itself, so the provider holds only the hydrated
// tool set for this connection; confirmation is the outer agent's job.
type Provider struct {
	search   searcher
	executor domain.ToolExecutor
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]domain.ToolSchema
}

// ProviderOptions configures optional provider collaborators.
type ProviderOptions struct {
	Logger *zap.Logger
}

// NewProvider creates a provider over the given search service and
// executor.
func NewProvider(search searcher, executor domain.ToolExecutor, opts ProviderOptions) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		search:   search,
		executor: executor,
		logger:   logger.Named("provider"),
		active:   make(map[string]domain.ToolSchema),
	}
}

// Discover runs one ranked search pass without hydrating anything.
func (p *Provider) Discover(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	const op = "gateway.discover"
	if strings.TrimSpace(query) == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "", domain.ErrEmptyQuery)
	}
	return p.search.Search(ctx, query, domain.SearchFilters{Limit: limit})
}

// DiscoverAndHydrate searches the registry, hydrates the matching
// schemas from their tool servers, and marks them active for this
// connection. Servers that fail to hydrate are skipped with a warning;
// the call fails only when candidates existed and none could be
// hydrated.
func (p *Provider) DiscoverAndHydrate(ctx context.Context, query string, limit int) ([]domain.ToolSchema, error) {
	const op = "gateway.discover_and_hydrate"

	candidates, err := p.Discover(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	wanted := make(map[string][]string)
	for _, candidate := range candidates {
		uri := candidate.Metadata.URI
		wanted[uri] = append(wanted[uri], candidate.Metadata.Name)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		hydrated []domain.ToolSchema
	)
	for uri, names := range wanted {
		wg.Add(1)
		go func(uri string, names []string) {
			defer wg.Done()

			schemas, err := p.executor.FetchSchemas(ctx, uri)
			if err != nil {
				p.logger.Warn("schema hydration failed",
					zap.String("uri", uri),
					zap.Error(err),
				)
				return
			}

			byName := make(map[string]domain.ToolSchema, len(schemas))
			for _, schema := range schemas {
				byName[schema.Name] = schema
			}
			for _, name := range names {
				schema, ok := byName[name]
				if !ok {
					p.logger.Warn("tool not advertised by its server",
						zap.String("tool", name),
						zap.String("uri", uri),
					)
					continue
				}
				mu.Lock()
				hydrated = append(hydrated, schema)
				mu.Unlock()
			}
		}(uri, names)
	}
	wg.Wait()

	if len(hydrated) == 0 {
		return nil, domain.E(domain.CodeUnavailable, op, "no tool schemas could be hydrated", nil)
	}

	sort.Slice(hydrated, func(i, j int) bool { return hydrated[i].Name < hydrated[j].Name })

	p.mu.Lock()
	for _, schema := range hydrated {
		p.active[schema.Name] = schema
	}
	p.mu.Unlock()

	p.logger.Info("tools hydrated",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("hydrated", len(hydrated)),
	)
	return hydrated, nil
}

// Execute invokes a previously hydrated tool. Calling a tool that was
// never hydrated on this connection fails before anything is dispatched.
func (p *Provider) Execute(ctx context.Context, toolName string, arguments json.RawMessage) (domain.ToolCallOutcome, error) {
	const op = "gateway.execute"

	p.mu.Lock()
	schema, ok := p.active[toolName]
	p.mu.Unlock()
	if !ok {
		return domain.ToolCallOutcome{Name: toolName, Rejected: true},
			domain.E(domain.CodeFailedPrecond, op, toolName+" was not discovered on this connection", domain.ErrUnknownToolCall)
	}

	return p.executor.Invoke(ctx, schema.URI, toolName, arguments)
}

// ActiveTools returns the hydrated set sorted by name.
func (p *Provider) ActiveTools() []domain.ToolSchema {
	p.mu.Lock()
	defer p.mu.Unlock()

	tools := make([]domain.ToolSchema, 0, len(p.active))
	for _, schema := range p.active {
		tools = append(tools, schema)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Clear drops every hydrated schema.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.active = make(map[string]domain.ToolSchema)
	p.mu.Unlock()
}
