package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	aicoreconfig "github.com/contentops/aicore/internal/config"
	"github.com/contentops/aicore/internal/history"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/scheduler"
)

// loadConfig reads the shared coordinator/scheduler config file every
// subcommand operates against.
func loadConfig() (*aicoreconfig.Config, error) {
	cfg, err := aicoreconfig.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configFile, err)
	}
	return cfg, nil
}

// redisClientFor opens a Redis connection from the loaded config, backing
// the ledger and scheduler stores every command below reads from.
func redisClientFor(cfg *aicoreconfig.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func ledgerFor(cfg *aicoreconfig.Config) (*ledger.Ledger, *redis.Client) {
	client := redisClientFor(cfg)
	return ledger.New(client), client
}

func schedulerFor(cfg *aicoreconfig.Config) (*scheduler.Store, *redis.Client) {
	client := redisClientFor(cfg)
	return scheduler.New(client), client
}

// historyFor connects to Firestore, returning an error the caller should
// report as "task history is not configured" when ProjectID is blank.
func historyFor(ctx context.Context, cfg *aicoreconfig.Config) (*history.Store, error) {
	if cfg.History.ProjectID == "" {
		return nil, fmt.Errorf("task history is not configured for this deployment")
	}
	return history.New(ctx, history.Config{
		ProjectID:       cfg.History.ProjectID,
		CredentialsFile: cfg.History.CredentialsFile,
		Collection:      cfg.History.Collection,
	})
}
