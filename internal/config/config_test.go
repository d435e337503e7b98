package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigFileSizeLimit(t *testing.T) {
	tmpDir := t.TempDir()

	largeFile := filepath.Join(tmpDir, "large.yaml")
	data := strings.Repeat("x: value\n", 200000) // ~1.8MB
	if err := os.WriteFile(largeFile, []byte(data), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err := LoadConfig(largeFile)
	if err == nil {
		t.Fatal("expected error for large file")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected 'too large' error, got: %v", err)
	}
}

func TestLoadConfigValidFileAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
providers:
  openai_key: test-key
router:
  default_model: gpt-4
  max_tokens: 100
  temperature: 0.5
`
	validFile := filepath.Join(tmpDir, "valid.yaml")
	if err := os.WriteFile(validFile, []byte(validConfig), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Router.DefaultModel != "gpt-4" {
		t.Errorf("expected model 'gpt-4', got %s", cfg.Router.DefaultModel)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Scheduler.MaxAttempts)
	}
}

func TestLoadConfigNonexistentFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	invalidYAML := `
router:
  default_model: gpt-4
invalid yaml here: [[[
`
	invalidFile := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalidFile, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if _, err := LoadConfig(invalidFile); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigEnvOverridesBlankSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.yaml")
	if err := os.WriteFile(validFile, []byte("router:\n  default_model: gpt-4\n"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.OpenAIKey != "env-key" {
		t.Errorf("expected env override to populate OpenAIKey, got %q", cfg.Providers.OpenAIKey)
	}
}

func TestValidateRequiresProviderAndRedis(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no provider credentials")
	}

	cfg.Providers.OpenAIKey = "k"
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no redis addr")
	}

	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
