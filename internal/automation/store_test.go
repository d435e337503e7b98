package automation

import "testing"

func TestConfigStoreGetDefaultsToManualMode(t *testing.T) {
	s := NewConfigStore()
	cfg := s.Get("acme")
	if cfg.Mode != ModeManual {
		t.Fatalf("expected manual-mode default, got %q", cfg.Mode)
	}
}

func TestConfigStoreSetThenGetRoundTrips(t *testing.T) {
	s := NewConfigStore()
	s.Set(Config{TenantID: "acme", Mode: ModeFullAutonomous, MaxDailyPosts: 5})

	cfg := s.Get("acme")
	if cfg.Mode != ModeFullAutonomous || cfg.MaxDailyPosts != 5 {
		t.Fatalf("expected stored config, got %+v", cfg)
	}
}

func TestConfigStoreDeleteRevertsToDefault(t *testing.T) {
	s := NewConfigStore()
	s.Set(Config{TenantID: "acme", Mode: ModeFullAutonomous})
	s.Delete("acme")

	cfg := s.Get("acme")
	if cfg.Mode != ModeManual {
		t.Fatalf("expected manual-mode default after delete, got %q", cfg.Mode)
	}
}
