// Package config loads the coordinator/scheduler process configuration from
// a YAML file, with environment variables overriding secrets that should
// never be checked into a config file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigFileBytes caps how large a config file LoadConfig will parse.
const maxConfigFileBytes = 1 << 20 // 1MB

// Config is the root configuration for both cmd/coordinator and
// cmd/scheduler; each process only reads the sections it needs.
type Config struct {
	// Providers holds the vendor API keys/credentials for C1's adapters.
	Providers ProvidersConfig `yaml:"providers"`

	// Redis backs the Response Cache (C2), Cost Ledger (C3), and Scheduler
	// (C11) stores.
	Redis RedisConfig `yaml:"redis"`

	// History is the optional Firestore-backed Task History store (C8).
	History HistoryConfig `yaml:"history"`

	// Router configures default model-routing behavior (C4).
	Router RouterConfig `yaml:"router"`

	// Runtime holds process-wide concurrency/buffer settings.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Scheduler configures the delayed-job worker (C11).
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Workflow configures the Collaborative Workflow Orchestrator's state
	// store (C10).
	Workflow WorkflowConfig `yaml:"workflow"`

	// Observability configures tracing/metrics.
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProvidersConfig holds per-vendor credentials. Empty fields fall back to
// environment variables in LoadConfig so secrets never need to live in the
// YAML file on disk.
type ProvidersConfig struct {
	OpenAIKey      string `yaml:"openai_key"`
	AnthropicKey   string `yaml:"anthropic_key"`
	GeminiKey      string `yaml:"gemini_key"`
	AWSRegion      string `yaml:"aws_region"`
	BedrockEnabled bool   `yaml:"bedrock_enabled"`
}

// RedisConfig points at the Redis instance shared by the cache, ledger, and
// scheduler stores.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HistoryConfig configures the Firestore-backed Task History store. A blank
// ProjectID disables history persistence (spec.md §6's "optional document
// store").
type HistoryConfig struct {
	ProjectID       string `yaml:"gcp_project"`
	CredentialsFile string `yaml:"gcp_credentials"`
	Collection      string `yaml:"collection"`
}

// RouterConfig holds the defaults the Model Router (C4) falls back to when a
// request doesn't pin a model or tier.
type RouterConfig struct {
	DefaultModel string  `yaml:"default_model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// RuntimeConfig holds process-wide concurrency and buffering knobs.
type RuntimeConfig struct {
	ChannelBufferSize  int  `yaml:"channel_buffer_size"`
	MaxConcurrentCalls int  `yaml:"max_concurrent_calls"`
	EnableMetrics      bool `yaml:"enable_metrics"`
}

// SchedulerConfig holds the scheduler worker's settings. Only PollInterval
// reaches the worker; the sweep runs on a fixed every-5-minutes schedule and
// SweepCron is not read. MaxAttempts is not read either: each job carries its
// own max_attempts, set when it is scheduled.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	SweepCron    string        `yaml:"sweep_cron"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// WorkflowConfig selects the Workflow Orchestrator's persistence backend. A
// blank StoreDir keeps workflow state in memory, fine for a single-process
// deployment; setting it durably persists state (and checkpoints) to disk
// across restarts.
type WorkflowConfig struct {
	StoreDir string `yaml:"store_dir"`
}

// ObservabilityConfig configures tracing export and the metrics/health
// server.
type ObservabilityConfig struct {
	ServiceName  string `yaml:"service_name"`
	ExporterType string `yaml:"exporter_type"` // otlp, stdout, none
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	HealthPort   int    `yaml:"health_port"`
}

// LoadConfig loads configuration from a YAML file, applies defaults, and
// overrides secret fields from the environment when left blank in the file.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Router.MaxTokens == 0 {
		cfg.Router.MaxTokens = 1000
	}
	if cfg.Router.Temperature == 0 {
		cfg.Router.Temperature = 0.7
	}
	if cfg.Router.DefaultModel == "" {
		cfg.Router.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Runtime.ChannelBufferSize == 0 {
		cfg.Runtime.ChannelBufferSize = 100
	}
	if cfg.Runtime.MaxConcurrentCalls == 0 {
		cfg.Runtime.MaxConcurrentCalls = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.History.Collection == "" {
		cfg.History.Collection = "task_history"
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = 2 * time.Second
	}
	if cfg.Scheduler.SweepCron == "" {
		cfg.Scheduler.SweepCron = "*/5 * * * *"
	}
	if cfg.Scheduler.MaxAttempts == 0 {
		cfg.Scheduler.MaxAttempts = 3
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "aicore"
	}
	if cfg.Observability.ExporterType == "" {
		cfg.Observability.ExporterType = "stdout"
	}
	if cfg.Observability.HealthPort == 0 {
		cfg.Observability.HealthPort = 9090
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg.Providers.OpenAIKey == "" {
		cfg.Providers.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Providers.AnthropicKey == "" {
		cfg.Providers.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Providers.GeminiKey == "" {
		cfg.Providers.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Providers.AWSRegion == "" {
		cfg.Providers.AWSRegion = os.Getenv("AWS_REGION")
	}
	if cfg.Redis.Addr == "localhost:6379" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			cfg.Redis.Addr = v
		}
	}
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.History.ProjectID == "" {
		cfg.History.ProjectID = os.Getenv("GCP_PROJECT")
	}
	if cfg.History.CredentialsFile == "" {
		cfg.History.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// SaveConfig writes configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the minimum configuration needed to start a process: at
// least one provider credential and a non-empty Redis address. Whether Redis
// is reachable is not checked.
func (c *Config) Validate() error {
	if c.Providers.OpenAIKey == "" && c.Providers.AnthropicKey == "" && c.Providers.GeminiKey == "" && !c.Providers.BedrockEnabled {
		return fmt.Errorf("at least one provider credential must be configured")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}
