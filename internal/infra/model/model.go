package model

import (
	"context"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"jitmcp/internal/domain"
)

// initializeModel creates the chat model based on configuration.
func initializeModel(ctx context.Context, config domain.ModelConfig) (model.ToolCallingChatModel, error) {
	const op = "model.init"

	apiKey, err := resolveAPIKey(op, config.APIKey, config.APIKeyEnvVar)
	if err != nil {
		return nil, err
	}

	switch config.Provider {
	case "openai", "":
		cfg := &openai.ChatModelConfig{
			Model:  config.Model,
			APIKey: apiKey,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		return openai.NewChatModel(ctx, cfg)
	default:
		return nil, domain.E(domain.CodeInvalidArgument, op, "unsupported provider: "+config.Provider, nil)
	}
}

// resolveAPIKey prefers the inline key and falls back to the named
// environment variable.
func resolveAPIKey(op, inline, envVar string) (string, error) {
	apiKey := strings.TrimSpace(inline)
	if apiKey != "" {
		return apiKey, nil
	}
	envVar = strings.TrimSpace(envVar)
	if envVar == "" {
		return "", domain.E(domain.CodeFailedPrecond, op, "API key is required: set model.apiKey or model.apiKeyEnvVar", nil)
	}
	apiKey = os.Getenv(envVar)
	if apiKey == "" {
		return "", domain.E(domain.CodeFailedPrecond, op, "API key not found in env var "+envVar, nil)
	}
	return apiKey, nil
}
