package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"

	aicoreconfig "github.com/contentops/aicore/internal/config"
	"github.com/contentops/aicore/internal/automation"
	"github.com/contentops/aicore/internal/bus"
	"github.com/contentops/aicore/internal/cache"
	"github.com/contentops/aicore/internal/coordinator"
	"github.com/contentops/aicore/internal/history"
	"github.com/contentops/aicore/internal/httpapi"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/monitor"
	"github.com/contentops/aicore/internal/observability"
	"github.com/contentops/aicore/internal/provider"
	"github.com/contentops/aicore/internal/router"
	"github.com/contentops/aicore/internal/scheduler"
	"github.com/contentops/aicore/internal/workflow"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/coordinator.yaml"), "Coordinator configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 8080), "HTTP server port")
)

func main() {
	flag.Parse()

	log.Printf("Starting aicore coordinator v%s", Version)

	cfg, err := aicoreconfig.LoadConfig(*configFile)
	if err != nil {
		log.Printf("coordinator: config error: %v", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("coordinator: invalid config: %v", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := observability.InitFromEnv(); err != nil {
		log.Printf("coordinator: observability init: %v", err)
	}
	defer observability.Shutdown(context.Background())
	observability.InitMetrics()
	monitor.InitMetrics()
	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	healthChecker.RegisterCheck(observability.DatabaseCheck(func(checkCtx context.Context) error {
		return redisClient.Ping(checkCtx).Err()
	}))

	registry, providerFor := buildProviders(ctx, cfg)

	pricingTable := provider.NewPricingTable(provider.DefaultModelTable)
	modelRouter := router.New(pricingTable, "gpt-4o")

	coreCoordinator := &coordinator.Coordinator{
		Providers:   registry,
		Router:      modelRouter,
		Cache:       cache.New(redisClient),
		Ledger:      ledger.New(redisClient),
		ProviderFor: providerFor,
	}

	var historyStore *history.Store
	if cfg.History.ProjectID != "" {
		historyStore, err = history.New(ctx, history.Config{
			ProjectID:       cfg.History.ProjectID,
			CredentialsFile: cfg.History.CredentialsFile,
			Collection:      cfg.History.Collection,
		})
		if err != nil {
			log.Printf("coordinator: task history disabled: %v", err)
		} else {
			defer historyStore.Close()
		}
	}

	configStore := automation.NewConfigStore()
	messageBus := bus.NewBus()
	for _, t := range []string{"content", "strategy", "engagement", "analytics", "trend", "competitor", "crisis", "sentiment", "hashtag"} {
		messageBus.Register(t)
	}

	var workflowStore workflow.Store
	if cfg.Workflow.StoreDir != "" {
		fileStore, err := workflow.NewFileStore(cfg.Workflow.StoreDir)
		if err != nil {
			log.Fatalf("coordinator: open workflow store: %v", err)
		}
		workflowStore = fileStore
	} else {
		workflowStore = workflow.NewMemoryStore()
	}

	orchestrator := &workflow.Orchestrator{
		Coordinator: coreCoordinator,
		Bus:         messageBus,
		Store:       workflowStore,
		Configs: func(ctx context.Context, tenantID string) (automation.Config, error) {
			return configStore.Get(tenantID), nil
		},
	}
	if historyStore != nil {
		orchestrator.History = historyStore
	}

	mon := &monitor.Monitor{Ledger: coreCoordinator.Ledger}
	if historyStore != nil {
		mon.History = historyStore
	}

	schedStore := scheduler.New(redisClient)

	api := &httpapi.API{
		Coordinator: coreCoordinator,
		Workflows:   orchestrator,
		Ledger:      coreCoordinator.Ledger,
		History:     historyStore,
		Monitor:     mon,
		Scheduler:   schedStore,
		Configs:     configStore,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthHandler())
	mux.HandleFunc("/health/live", observability.LivenessHandler())
	mux.HandleFunc("/health/ready", observability.ReadinessHandler())
	mux.Handle("/metrics", observability.MetricsHandler())
	api.Routes(mux)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", *httpPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("coordinator: HTTP server listening on :%d", *httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("coordinator: %v", err)
		os.Exit(1)
	case <-quit:
		log.Println("coordinator: shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("coordinator: HTTP server shutdown error: %v", err)
	}

	log.Println("coordinator: stopped")
}

// modelVendorPrefixes maps a model id prefix (see provider.DefaultModelTable)
// to the vendor name each adapter registers itself under.
var modelVendorPrefixes = []struct {
	prefix string
	vendor string
}{
	{"gpt", "openai"},
	{"claude", "anthropic"},
	{"gemini", "gemini"},
	{"bedrock", "bedrock"},
}

// buildProviders wires every configured vendor adapter into the registry and
// returns a ProviderFor resolver keyed by the model id's vendor prefix,
// mirroring the model table's vendor-prefixed ids (gpt-*, claude-*,
// gemini-*, bedrock-*).
func buildProviders(ctx context.Context, cfg *aicoreconfig.Config) (*provider.Registry, func(modelID string) (provider.Provider, bool)) {
	registry := provider.NewRegistry()

	if cfg.Providers.OpenAIKey != "" {
		registry.Register("openai", provider.NewOpenAIAdapter(cfg.Providers.OpenAIKey))
	}
	if cfg.Providers.AnthropicKey != "" {
		registry.Register("anthropic", provider.NewAnthropicAdapter(cfg.Providers.AnthropicKey))
	}
	if cfg.Providers.GeminiKey != "" {
		gemini, err := provider.NewGeminiAdapter(ctx, cfg.Providers.GeminiKey)
		if err != nil {
			log.Printf("coordinator: gemini adapter disabled: %v", err)
		} else {
			registry.Register("gemini", gemini)
		}
	}
	if cfg.Providers.BedrockEnabled {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Providers.AWSRegion))
		if err != nil {
			log.Printf("coordinator: bedrock adapter disabled: %v", err)
		} else {
			registry.Register("bedrock", provider.NewBedrockAdapter(awsCfg))
		}
	}

	return registry, func(modelID string) (provider.Provider, bool) {
		for _, m := range modelVendorPrefixes {
			if len(modelID) >= len(m.prefix) && modelID[:len(m.prefix)] == m.prefix {
				return registry.Get(m.vendor)
			}
		}
		return nil, false
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
