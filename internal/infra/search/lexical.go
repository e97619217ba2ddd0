package search

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"jitmcp/internal/domain"
)

// nameWeight makes a hit in the tool name count more than the same term
// in the description.
const nameWeight = 3

// lexicalStrategy ranks by term frequency of query terms over tokenized
// tool names and descriptions. Deterministic for a fixed corpus; ties
// break by registration order.
type lexicalStrategy struct {
	registry registryReader
}

func (l *lexicalStrategy) Name() string {
	return domain.StrategyLexical
}

func (l *lexicalStrategy) Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	tools, err := l.registry.List()
	if err != nil {
		return nil, err
	}
	tools = filterByCategory(tools, filters.Category)

	results := make([]domain.SearchResult, 0, len(tools))
	for _, tool := range tools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := termFrequency(terms, tokenize(tool.Name))*nameWeight +
			termFrequency(terms, tokenize(tool.Description))
		if score == 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			Metadata: tool,
			Score:    float64(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Metadata.Seq < results[j].Metadata.Seq
	})

	return capAndRank(results, filters.Limit), nil
}

// termFrequency counts how often any query term appears in doc.
func termFrequency(terms, doc []string) int {
	counts := make(map[string]int, len(doc))
	for _, token := range doc {
		counts[token]++
	}
	total := 0
	for _, term := range terms {
		total += counts[term]
	}
	return total
}

// tokenize lowercases and splits on any non-alphanumeric rune, so
// "weather_api" yields the same tokens as "weather API".
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
