package search

import (
	"context"
	"math"
	"sort"

	"jitmcp/internal/domain"
)

// semanticStrategy ranks by cosine similarity between the query embedding
// and stored description embeddings. Ties break by name, ascending, for
// determinism. Tools registered without an embedder have no vector and
// are skipped.
type semanticStrategy struct {
	registry registryReader
	embedder domain.Embedder
}

func (s *semanticStrategy) Name() string {
	return domain.StrategySemantic
}

func (s *semanticStrategy) Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}
	queryVector := vectors[0]

	tools, err := s.registry.List()
	if err != nil {
		return nil, err
	}
	tools = filterByCategory(tools, filters.Category)

	results := make([]domain.SearchResult, 0, len(tools))
	for _, tool := range tools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector, found, err := s.registry.Embedding(tool.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		results = append(results, domain.SearchResult{
			Metadata: tool,
			Score:    cosine(queryVector, vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Metadata.Name < results[j].Metadata.Name
	})

	return capAndRank(results, filters.Limit), nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
