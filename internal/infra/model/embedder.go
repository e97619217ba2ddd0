package model

import (
	"context"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"

	"jitmcp/internal/domain"
)

// OpenAIEmbedder adapts the openai embedding component to the
// domain.Embedder contract used by the registry and semantic search.
type OpenAIEmbedder struct {
	embedder *openaiembed.Embedder
}

// NewOpenAIEmbedder creates an embedder from configuration.
func NewOpenAIEmbedder(ctx context.Context, config domain.EmbeddingConfig) (*OpenAIEmbedder, error) {
	const op = "model.embedder_init"

	apiKey, err := resolveAPIKey(op, config.APIKey, config.APIKeyEnvVar)
	if err != nil {
		return nil, err
	}

	cfg := &openaiembed.EmbeddingConfig{
		Model:  config.Model,
		APIKey: apiKey,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	embedder, err := openaiembed.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	return &OpenAIEmbedder{embedder: embedder}, nil
}

func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	return e.embedder.EmbedStrings(ctx, texts)
}
