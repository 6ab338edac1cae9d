package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kapu/lead-analyzer-go/internal/config"
	"github.com/kapu/lead-analyzer-go/internal/prompt"
	"github.com/kapu/lead-analyzer-go/internal/server"
	"github.com/kapu/lead-analyzer-go/internal/service/ai"
	"github.com/kapu/lead-analyzer-go/internal/service/cache"
	"github.com/kapu/lead-analyzer-go/internal/service/database"
	"github.com/kapu/lead-analyzer-go/internal/service/enrichment"
	"github.com/kapu/lead-analyzer-go/internal/service/expert"
	"github.com/kapu/lead-analyzer-go/internal/service/history"
	"github.com/kapu/lead-analyzer-go/internal/service/scraper"
	"github.com/kapu/lead-analyzer-go/internal/service/session"
	"github.com/kapu/lead-analyzer-go/internal/service/webhook"
	"github.com/kapu/lead-analyzer-go/internal/service/workspace"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"go.uber.org/zap"
)

// Container bundles the assembled services used by the CLI commands and the HTTP server.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Registry   *expert.Registry
	Ledger     *history.Ledger
	Workspace  *workspace.Workspace
	Models     *ai.ModelManager
	Enrichment *enrichment.Service
	Hub        *server.Hub

	closers []func()
}

// Handler returns the full HTTP API.
func (c *Container) Handler() http.Handler {
	return server.NewRouter(server.Deps{
		Workspace: c.Workspace,
		Registry:  c.Registry,
		Enricher:  c.Enrichment,
		Hub:       c.Hub,
		Logger:    c.Logger,
	})
}

// Close releases storage connections in reverse order of creation.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles storage, the workspace core and the enrichment collaborator.
// Connections are opened here so commands only deal with ready services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// Storage
	kv, scrapeCache, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() {
		_ = kv.Close()
	})

	// Workspace core
	registry, err := expert.NewRegistry(ctx, kv, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load experts: %w", err)
	}
	ledger, err := history.NewLedger(ctx, kv, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	hub := server.NewHub(logger)
	c.closers = append(c.closers, hub.Close)

	ws, err := workspace.New(ctx, workspace.Deps{
		Registry:       registry,
		Ledger:         ledger,
		Session:        session.New(ledger, logger),
		Client:         webhook.NewClient(cfg.Webhook.AnalysisTimeout, logger),
		KV:             kv,
		Progress:       hub,
		Logger:         logger,
		DefaultWebhook: cfg.Webhook.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:       cfg.Gemini.APIKey,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: "gemini-2.5-flash",
		DefaultOpenAIModel: "gpt-5-mini",
		EnableFallback:     cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	// Collaborator
	var renderer scraper.Renderer
	if cfg.Browser.Enabled {
		renderer = scraper.NewRodRenderer(cfg.Browser.Bin, logger)
	}
	var profileCache scraper.Cache
	if scrapeCache != nil {
		profileCache = scrapeCache
	}
	scraperSvc := scraper.NewScraperService(renderer, profileCache, logger)

	enrichmentSvc := enrichment.New(enrichment.Deps{
		Scraper:  scraperSvc,
		Models:   modelManager,
		Prompts:  prompt.DefaultPromptBuilder(),
		Progress: hub,
		Logger:   logger,
	})

	c.Registry = registry
	c.Ledger = ledger
	c.Workspace = ws
	c.Models = modelManager
	c.Enrichment = enrichmentSvc
	c.Hub = hub

	logger.Info("Application services assembled",
		zap.String("store", cfg.Store.Backend),
		zap.Bool("browser", cfg.Browser.Enabled),
		zap.Bool("ai", modelManager.Available()),
		zap.Int("history", ledger.Len()),
	)
	return c, nil
}

// openStore opens the configured workspace backend. The redis backend also
// serves as the scrape cache; other backends run without one.
func openStore(cfg *config.Config, logger *zap.Logger) (store.KV, *cache.CacheService, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemory(), nil, nil
	case "redis":
		cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create cache service: %w", err)
		}
		return cacheSvc, cacheSvc, nil
	case "postgres":
		postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres service: %w", err)
		}
		return postgresSvc, nil, nil
	default:
		sqlite, err := store.OpenSQLite(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return sqlite, nil, nil
	}
}
