package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// Strategy ranks registry tools against a query. Strategies read the
// registry as the single source of truth; they never cache tool content,
// so a removed tool can never surface as a dangling result.
type Strategy interface {
	Name() string
	Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error)
}

// registryReader is the slice of the registry store the strategies need.
type registryReader interface {
	List() ([]domain.ToolMetadata, error)
	Embedding(name string) ([]float64, bool, error)
}

// Service presents one uniform search contract regardless of the backing
// strategy. The strategy is fixed at construction; queries never mix
// strategies.
type Service struct {
	strategy     Strategy
	defaultLimit int
	metrics      domain.Metrics
	logger       *zap.Logger
}

// ServiceOptions configures a search service.
type ServiceOptions struct {
	// Embedder backs the semantic strategy. Required when
	// cfg.Strategy == StrategySemantic.
	Embedder domain.Embedder
	Metrics  domain.Metrics
	Logger   *zap.Logger
}

// NewService builds a service with the strategy named in cfg.
func NewService(registry registryReader, cfg domain.SearchConfig, opts ServiceOptions) (*Service, error) {
	const op = "search.new"
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}

	var strategy Strategy
	switch strings.TrimSpace(cfg.Strategy) {
	case domain.StrategyLexical, "":
		strategy = &lexicalStrategy{registry: registry}
	case domain.StrategySemantic:
		if opts.Embedder == nil {
			return nil, domain.E(domain.CodeFailedPrecond, op, "", domain.ErrEmbedderRequired)
		}
		strategy = &semanticStrategy{registry: registry, embedder: opts.Embedder}
	default:
		return nil, domain.E(domain.CodeInvalidArgument, op, "unknown search strategy: "+cfg.Strategy, nil)
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}

	return &Service{
		strategy:     strategy,
		defaultLimit: limit,
		metrics:      metrics,
		logger:       logger.Named("search"),
	}, nil
}

// Search runs one ranked pass with the configured strategy.
func (s *Service) Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = s.defaultLimit
	}

	started := time.Now()
	results, err := s.strategy.Search(ctx, query, filters)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "search.query", err)
	}
	s.metrics.ObserveSearch(s.strategy.Name(), len(results), time.Since(started))
	s.logger.Debug("search pass",
		zap.String("strategy", s.strategy.Name()),
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Strategy returns the active strategy name.
func (s *Service) Strategy() string {
	return s.strategy.Name()
}

func filterByCategory(tools []domain.ToolMetadata, category string) []domain.ToolMetadata {
	if category == "" {
		return tools
	}
	filtered := tools[:0:0]
	for _, tool := range tools {
		if tool.Category == category {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

func capAndRank(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
