package provider

import "testing"

func TestPricingTableLookupExact(t *testing.T) {
	table := NewPricingTable(DefaultModelTable)
	d, ok := table.Lookup("gpt-4o-mini")
	if !ok {
		t.Fatalf("expected gpt-4o-mini to resolve")
	}
	if d.Tier != TierEfficient {
		t.Fatalf("expected efficient tier, got %s", d.Tier)
	}
}

func TestPricingTableLookupPrefix(t *testing.T) {
	table := NewPricingTable(DefaultModelTable)
	d, ok := table.Lookup("gpt-4o-mini-2024-07-18")
	if !ok {
		t.Fatalf("expected prefix match to resolve")
	}
	if d.ID != "gpt-4o-mini" {
		t.Fatalf("expected longest-prefix match gpt-4o-mini, got %s", d.ID)
	}
}

func TestPricingTableLookupUnknown(t *testing.T) {
	table := NewPricingTable(DefaultModelTable)
	if _, ok := table.Lookup("totally-unknown-model"); ok {
		t.Fatalf("expected unknown model to fail lookup")
	}
}

func TestEstimateMatchesLiteralExample(t *testing.T) {
	// spec.md end-to-end scenario 1: prompt 1000, completion 500 at
	// $0.15/$0.60 per Mtok (gpt-4o-mini's pricing) yields cost 0.00045.
	table := NewPricingTable(DefaultModelTable)
	cost, ok := table.Estimate("gpt-4o-mini", 1000, 500)
	if !ok {
		t.Fatalf("expected estimate to resolve")
	}
	want := 0.00045
	if diff := cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected cost %v, got %v", want, cost)
	}
}

func TestSystemPromptUniqueAndFirst(t *testing.T) {
	req := CompletionRequest{Messages: []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "hi"},
	}}
	prompt, multiple := req.SystemPrompt()
	if multiple {
		t.Fatalf("expected single system turn")
	}
	if prompt != "s" {
		t.Fatalf("expected system prompt 's', got %q", prompt)
	}
}

func TestSystemPromptRejectsMultiple(t *testing.T) {
	req := CompletionRequest{Messages: []Message{
		{Role: "system", Content: "s1"},
		{Role: "system", Content: "s2"},
		{Role: "user", Content: "hi"},
	}}
	if _, multiple := req.SystemPrompt(); !multiple {
		t.Fatalf("expected multiple system turns to be detected")
	}
}

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 0)
	if !cb.Allow() {
		t.Fatalf("expected breaker to start closed")
	}
	cb.RecordResult(errBoom)
	cb.RecordResult(errBoom)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected breaker to open after maxFailures")
	}
	if !cb.Allow() {
		t.Fatalf("expected breaker to half-open immediately with zero resetTimeout")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
