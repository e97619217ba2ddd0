package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
	"jitmcp/internal/infra/catalog"
	"jitmcp/internal/infra/executor"
	"jitmcp/internal/infra/gateway"
	"jitmcp/internal/infra/model"
	"jitmcp/internal/infra/orchestrator"
	"jitmcp/internal/infra/registry"
	"jitmcp/internal/infra/search"
	"jitmcp/internal/infra/telemetry"
)

// App assembles the daemon's object graph from a catalog config and
// exposes the CLI-facing operations.
type App struct {
	logger *zap.Logger
	loader *catalog.Loader
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger,
		loader: catalog.NewLoader(logger),
	}
}

// ServeConfig configures serve mode.
type ServeConfig struct {
	ConfigPath string
}

// AskConfig configures a single orchestrated turn.
type AskConfig struct {
	ConfigPath string
	Query      string
	SessionID  string
}

// core is the assembled pipeline shared by serve and ask.
type core struct {
	config   domain.Config
	store    *registry.Store
	search   *search.Service
	gateway  *model.EinoGateway
	executor *executor.MCPExecutor
	orch     *orchestrator.Orchestrator
	metrics  *telemetry.PrometheusMetrics
}

func (c *core) Close() error {
	return c.store.Close()
}

func (a *App) buildCore(ctx context.Context, config domain.Config, registerer prometheus.Registerer) (*core, error) {
	metrics := telemetry.NewPrometheusMetrics(registerer)

	var embedder domain.Embedder
	if config.Search.Strategy == domain.StrategySemantic {
		openaiEmbedder, err := model.NewOpenAIEmbedder(ctx, config.Embedding)
		if err != nil {
			return nil, err
		}
		embedder = openaiEmbedder
	}

	store, err := registry.Open(config.Registry.Path, registry.StoreOptions{
		Embedder: embedder,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}

	searchService, err := search.NewService(store, config.Search, search.ServiceOptions{
		Embedder: embedder,
		Metrics:  metrics,
		Logger:   a.logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	modelGateway, err := model.NewEinoGateway(ctx, config.Model, model.GatewayOptions{
		Metrics: metrics,
		Logger:  a.logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mcpExecutor := executor.NewMCPExecutor(executor.ExecutorOptions{
		Metrics: metrics,
		Logger:  a.logger,
	})

	policy, err := orchestrator.NewPolicy(config.Confirm, modelGateway, a.logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	orch := orchestrator.New(store, searchService, modelGateway, mcpExecutor, policy, orchestrator.Options{
		Metrics: metrics,
		Logger:  a.logger,
	})

	return &core{
		config:   config,
		store:    store,
		search:   searchService,
		gateway:  modelGateway,
		executor: mcpExecutor,
		orch:     orch,
		metrics:  metrics,
	}, nil
}

// Serve runs the daemon: seeds the registry from the catalog, watches the
// catalog for changes, serves observability endpoints, and exposes the
// discover/invoke meta-tools over stdio until ctx is canceled.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	config, err := a.loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	c, err := a.buildCore(runCtx, config, promRegistry)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := a.seedRegistry(runCtx, c.store, config.SeedTools); err != nil {
		return err
	}

	health := telemetry.NewHealthTracker()
	beat := health.Register("serve", 30*time.Second)
	go heartbeat(runCtx, beat, 10*time.Second)

	watcher := catalog.NewWatcher(a.loader, cfg.ConfigPath, func(next domain.Config) {
		if err := a.seedRegistry(runCtx, c.store, next.SeedTools); err != nil {
			a.logger.Warn("registry re-seed failed", zap.Error(err))
		}
	}, a.logger)
	go func() {
		if err := watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Warn("catalog watcher stopped", zap.Error(err))
		}
	}()

	go func() {
		err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
			Addr:          config.Observability.ListenAddress,
			EnableMetrics: config.Observability.EnableMetrics,
			EnableHealthz: config.Observability.EnableHealthz,
			Health:        health,
			Registry:      promRegistry,
		}, a.logger)
		if err != nil {
			a.logger.Error("observability server failed", zap.Error(err))
		}
	}()

	provider := gateway.NewProvider(c.search, c.executor, gateway.ProviderOptions{
		Logger: a.logger,
	})
	server := gateway.NewServer(provider, a.logger)
	return server.Run(runCtx)
}

// Ask runs one orchestrated turn against the configured pipeline.
func (a *App) Ask(ctx context.Context, cfg AskConfig) (domain.TurnResult, error) {
	config, err := a.loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return domain.TurnResult{}, err
	}

	c, err := a.buildCore(ctx, config, prometheus.NewRegistry())
	if err != nil {
		return domain.TurnResult{}, err
	}
	defer func() { _ = c.Close() }()

	if err := a.seedRegistry(ctx, c.store, config.SeedTools); err != nil {
		return domain.TurnResult{}, err
	}

	return c.orch.Query(ctx, cfg.SessionID, cfg.Query)
}

// Validate loads and validates the catalog config without running
// anything.
func (a *App) Validate(ctx context.Context, configPath string) error {
	config, err := a.loader.Load(ctx, configPath)
	if err != nil {
		return err
	}
	a.logger.Info("config valid",
		zap.String("path", configPath),
		zap.String("strategy", config.Search.Strategy),
		zap.String("policy", config.Confirm.Policy),
		zap.Int("seedTools", len(config.SeedTools)),
	)
	return nil
}

// ToolAdd registers one tool in the registry.
func (a *App) ToolAdd(ctx context.Context, configPath string, tool domain.ToolMetadata, replace bool) error {
	store, err := a.openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.Add(ctx, tool, replace)
}

// ToolList returns every registered tool.
func (a *App) ToolList(ctx context.Context, configPath string) ([]domain.ToolMetadata, error) {
	store, err := a.openStore(ctx, configPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.List()
}

// ToolRemove deletes one tool from the registry.
func (a *App) ToolRemove(ctx context.Context, configPath, name string) error {
	store, err := a.openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.Remove(name)
}

// openStore opens just the registry, with the embedder attached when the
// config selects semantic search so added tools get indexed.
func (a *App) openStore(ctx context.Context, configPath string) (*registry.Store, error) {
	config, err := a.loader.Load(ctx, configPath)
	if err != nil {
		return nil, err
	}

	var embedder domain.Embedder
	if config.Search.Strategy == domain.StrategySemantic {
		openaiEmbedder, err := model.NewOpenAIEmbedder(ctx, config.Embedding)
		if err != nil {
			return nil, err
		}
		embedder = openaiEmbedder
	}

	return registry.Open(config.Registry.Path, registry.StoreOptions{
		Embedder: embedder,
		Logger:   a.logger,
	})
}

// seedRegistry registers the catalog's seed tools with replace semantics
// so catalog reloads update descriptions in place.
func (a *App) seedRegistry(ctx context.Context, store *registry.Store, tools []domain.ToolMetadata) error {
	for _, tool := range tools {
		if err := store.Add(ctx, tool, true); err != nil {
			return err
		}
	}
	if len(tools) > 0 {
		a.logger.Info("registry seeded", zap.Int("tools", len(tools)))
	}
	return nil
}

func heartbeat(ctx context.Context, beat *telemetry.Heartbeat, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	beat.Beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat.Beat()
		}
	}
}
