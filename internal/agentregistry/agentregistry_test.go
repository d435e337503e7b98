package agentregistry

import "testing"

func TestAllAgentTypesHaveDescriptors(t *testing.T) {
	for _, typ := range All() {
		d, ok := Lookup(typ)
		if !ok {
			t.Fatalf("expected descriptor for %s", typ)
		}
		if d.SystemPrompt == "" {
			t.Fatalf("expected non-empty system prompt for %s", typ)
		}
		if d.DefaultTemperature < 0 || d.DefaultTemperature > 1 {
			t.Fatalf("temperature out of range for %s: %v", typ, d.DefaultTemperature)
		}
		if d.DefaultCacheTTLSeconds <= 0 {
			t.Fatalf("expected positive cache ttl for %s", typ)
		}
	}
}

func TestCrisisHasShortestTTLAndAnalyticalTemperature(t *testing.T) {
	d, ok := Lookup(TypeCrisis)
	if !ok {
		t.Fatalf("expected crisis descriptor")
	}
	if d.DefaultTemperature != 0.2 {
		t.Fatalf("expected crisis to use the analytical temperature 0.2, got %v", d.DefaultTemperature)
	}
	if d.DefaultCacheTTLSeconds != 30*60 {
		t.Fatalf("expected crisis ttl of 30 minutes, got %v", d.DefaultCacheTTLSeconds)
	}
}

func TestStrategyHasWeekLongTTL(t *testing.T) {
	d, ok := Lookup(TypeStrategy)
	if !ok {
		t.Fatalf("expected strategy descriptor")
	}
	if d.DefaultCacheTTLSeconds != 7*24*3600 {
		t.Fatalf("expected strategy ttl of 7 days, got %v", d.DefaultCacheTTLSeconds)
	}
}

func TestContentHasCreativeTemperature(t *testing.T) {
	d, ok := Lookup(TypeContent)
	if !ok {
		t.Fatalf("expected content descriptor")
	}
	if d.DefaultTemperature != 0.8 {
		t.Fatalf("expected content temperature 0.8, got %v", d.DefaultTemperature)
	}
}

func TestLookupUnknownTypeFails(t *testing.T) {
	if _, ok := Lookup(Type("nonexistent")); ok {
		t.Fatalf("expected unknown agent type to fail lookup")
	}
}
