package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// Loader reads and validates the daemon configuration file. Environment
// references ($VAR) are expanded before decoding so secrets never live in
// the file itself.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", domain.DefaultRegistryPath)
	v.SetDefault("search.strategy", domain.DefaultSearchStrategy)
	v.SetDefault("search.limit", domain.DefaultSearchLimit)
	v.SetDefault("confirm.policy", domain.DefaultConfirmPolicy)
	v.SetDefault("confirm.topK", domain.DefaultConfirmTopK)
	v.SetDefault("confirm.threshold", domain.DefaultConfirmThreshold)
	v.SetDefault("model.provider", domain.DefaultModelProvider)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityAddress)
	v.SetDefault("observability.enableMetrics", true)
	v.SetDefault("observability.enableHealthz", true)
}

type rawConfig struct {
	Registry      rawRegistryConfig      `mapstructure:"registry"`
	Search        rawSearchConfig        `mapstructure:"search"`
	Confirm       rawConfirmConfig       `mapstructure:"confirm"`
	Model         rawModelConfig         `mapstructure:"model"`
	Embedding     rawEmbeddingConfig     `mapstructure:"embedding"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
	Tools         []rawToolSpec          `mapstructure:"tools"`
}

type rawRegistryConfig struct {
	Path string `mapstructure:"path"`
}

type rawSearchConfig struct {
	Strategy string `mapstructure:"strategy"`
	Limit    int    `mapstructure:"limit"`
}

type rawConfirmConfig struct {
	Policy    string  `mapstructure:"policy"`
	TopK      int     `mapstructure:"topK"`
	Threshold float64 `mapstructure:"threshold"`
}

type rawModelConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"apiKey"`
	APIKeyEnvVar string `mapstructure:"apiKeyEnvVar"`
	BaseURL      string `mapstructure:"baseURL"`
}

type rawEmbeddingConfig struct {
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"apiKey"`
	APIKeyEnvVar string `mapstructure:"apiKeyEnvVar"`
	BaseURL      string `mapstructure:"baseURL"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	EnableMetrics bool   `mapstructure:"enableMetrics"`
	EnableHealthz bool   `mapstructure:"enableHealthz"`
}

type rawToolSpec struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	URI         string `mapstructure:"uri"`
	Category    string `mapstructure:"category"`
}

// Load reads, expands, decodes, and validates the configuration at path.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	if path == "" {
		return domain.Config{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return domain.Config{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config",
			zap.String("path", path),
			zap.Strings("missing", missing),
		)
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg rawConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	config, validationErrors := normalize(cfg)
	if len(validationErrors) > 0 {
		return domain.Config{}, errors.New(strings.Join(validationErrors, "; "))
	}
	return config, nil
}

func normalize(cfg rawConfig) (domain.Config, []string) {
	var errs []string

	switch cfg.Search.Strategy {
	case domain.StrategyLexical, domain.StrategySemantic:
	default:
		errs = append(errs, fmt.Sprintf("search.strategy: unknown strategy %q", cfg.Search.Strategy))
	}
	if cfg.Search.Limit <= 0 {
		errs = append(errs, "search.limit: must be positive")
	}

	switch cfg.Confirm.Policy {
	case domain.PolicyModel, domain.PolicyTopK, domain.PolicyThreshold:
	default:
		errs = append(errs, fmt.Sprintf("confirm.policy: unknown policy %q", cfg.Confirm.Policy))
	}
	if cfg.Confirm.TopK <= 0 {
		errs = append(errs, "confirm.topK: must be positive")
	}
	if cfg.Confirm.Threshold < 0 || cfg.Confirm.Threshold > 1 {
		errs = append(errs, "confirm.threshold: must be within [0, 1]")
	}

	if cfg.Search.Strategy == domain.StrategySemantic && cfg.Embedding.Model == "" {
		errs = append(errs, "embedding.model: required for semantic search")
	}

	tools := make([]domain.ToolMetadata, 0, len(cfg.Tools))
	nameSeen := make(map[string]struct{}, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		if tool.Name == "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: name is required", i))
			continue
		}
		if _, dup := nameSeen[tool.Name]; dup {
			errs = append(errs, fmt.Sprintf("tools[%d]: duplicate name %q", i, tool.Name))
			continue
		}
		nameSeen[tool.Name] = struct{}{}
		if tool.Description == "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: description is required", i))
		}
		if tool.URI == "" {
			errs = append(errs, fmt.Sprintf("tools[%d]: uri is required", i))
		}
		tools = append(tools, domain.ToolMetadata{
			Name:        tool.Name,
			Description: tool.Description,
			URI:         tool.URI,
			Category:    tool.Category,
		})
	}

	return domain.Config{
		Registry: domain.RegistryConfig{Path: cfg.Registry.Path},
		Search:   domain.SearchConfig{Strategy: cfg.Search.Strategy, Limit: cfg.Search.Limit},
		Confirm: domain.ConfirmConfig{
			Policy:    cfg.Confirm.Policy,
			TopK:      cfg.Confirm.TopK,
			Threshold: cfg.Confirm.Threshold,
		},
		Model: domain.ModelConfig{
			Provider:     cfg.Model.Provider,
			Model:        cfg.Model.Model,
			APIKey:       cfg.Model.APIKey,
			APIKeyEnvVar: cfg.Model.APIKeyEnvVar,
			BaseURL:      cfg.Model.BaseURL,
		},
		Embedding: domain.EmbeddingConfig{
			Model:        cfg.Embedding.Model,
			APIKey:       cfg.Embedding.APIKey,
			APIKeyEnvVar: cfg.Embedding.APIKeyEnvVar,
			BaseURL:      cfg.Embedding.BaseURL,
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress: cfg.Observability.ListenAddress,
			EnableMetrics: cfg.Observability.EnableMetrics,
			EnableHealthz: cfg.Observability.EnableHealthz,
		},
		SeedTools: tools,
	}, errs
}
