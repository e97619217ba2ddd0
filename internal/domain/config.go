package domain

// Search strategies.
const (
	StrategyLexical  = "lexical"
	StrategySemantic = "semantic"
)

// Confirmation policies.
const (
	// PolicyModel lets the model review candidates and pick a subset.
	PolicyModel = "model"
	// PolicyTopK deterministically confirms the K highest-ranked candidates.
	PolicyTopK = "top_k"
	// PolicyThreshold confirms every candidate at or above a score floor.
	PolicyThreshold = "threshold"
)

// Defaults applied by the config loader.
const (
	DefaultRegistryPath         = "jit_registry.db"
	DefaultSearchStrategy       = StrategyLexical
	DefaultSearchLimit          = 5
	DefaultConfirmPolicy        = PolicyModel
	DefaultConfirmTopK          = 3
	DefaultConfirmThreshold     = 0.5
	DefaultModelProvider        = "openai"
	DefaultObservabilityAddress = "127.0.0.1:9464"
)

type RegistryConfig struct {
	Path string
}

type SearchConfig struct {
	Strategy string
	Limit    int
}

type ConfirmConfig struct {
	Policy    string
	TopK      int
	Threshold float64
}

// ModelConfig configures the chat model behind the gateway. The API key
// may be given inline or resolved from an environment variable.
type ModelConfig struct {
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
}

// EmbeddingConfig configures the embedder behind the semantic strategy.
type EmbeddingConfig struct {
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
}

type ObservabilityConfig struct {
	ListenAddress string
	EnableMetrics bool
	EnableHealthz bool
}

// Config is the full daemon configuration.
type Config struct {
	Registry      RegistryConfig
	Search        SearchConfig
	Confirm       ConfirmConfig
	Model         ModelConfig
	Embedding     EmbeddingConfig
	Observability ObservabilityConfig
	// SeedTools are registered (replace semantics) at startup and on
	// catalog reload.
	SeedTools []ToolMetadata
}
