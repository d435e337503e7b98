package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/cache"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/provider"
	"github.com/contentops/aicore/internal/router"
)

type fakeProvider struct {
	name  string
	calls int
	text  string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateCompletion(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	f.calls++
	return &provider.CompletionResponse{
		Text:        f.text,
		ChosenModel: req.Model,
		Tokens:      provider.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
		CostUSD:     0.01,
	}, nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	table := provider.NewPricingTable(provider.DefaultModelTable)
	fp := &fakeProvider{name: "openai", text: "hello there"}

	return &Coordinator{
		Router: router.New(table, "gpt-4o"),
		Cache:  cache.New(client),
		Ledger: ledger.New(client),
		ProviderFor: func(modelID string) (provider.Provider, bool) {
			return fp, true
		},
	}, fp
}

func TestCompleteDispatchesAndFillsCacheAndLedger(t *testing.T) {
	c, fp := newTestCoordinator(t)
	ctx := context.Background()

	req := provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: "hi"}},
		Model:       "gpt-4o-mini",
		Temperature: 0.5,
		TenantID:    "acme",
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Cached {
		t.Fatalf("expected first call to be a miss")
	}
	if fp.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", fp.calls)
	}

	time.Sleep(10 * time.Millisecond) // let best-effort cache/ledger goroutines settle

	spend, err := c.Ledger.MonthToDateSpend(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spend != 0.01 {
		t.Fatalf("expected ledger to record 0.01, got %v", spend)
	}

	resp2, err := c.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp2.Cached {
		t.Fatalf("expected second identical call to hit cache")
	}
	if fp.calls != 1 {
		t.Fatalf("expected no additional upstream call on cache hit, got %d calls", fp.calls)
	}

	spend2, err := c.Ledger.MonthToDateSpend(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spend2 != 0.01 {
		t.Fatalf("expected cached response not to add ledger spend, got %v", spend2)
	}
}

func TestCompleteRejectsMultipleSystemTurns(t *testing.T) {
	c, _ := newTestCoordinator(t)
	req := provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: "system", Content: "a"},
			{Role: "system", Content: "b"},
			{Role: "user", Content: "hi"},
		},
		TenantID: "acme",
	}
	_, err := c.Complete(context.Background(), req)
	var verr *ValidationError
	if err == nil {
		t.Fatalf("expected a validation error")
	}
	if !asValidationError(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func TestCompleteFailsFastWhenThrottled(t *testing.T) {
	c, fp := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Ledger.SetBudget(ctx, ledger.Budget{TenantID: "acme", MonthlyLimitUSD: 1, ThresholdFraction: 0.8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Ledger.Track(ctx, ledger.Entry{TenantID: "acme", Provider: "openai", Model: "m", CostUSD: 1, Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := c.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
		TenantID: "acme",
	})
	var berr *BudgetExceededError
	if !asBudgetExceeded(err, &berr) {
		t.Fatalf("expected *BudgetExceededError, got %T: %v", err, err)
	}
	if fp.calls != 0 {
		t.Fatalf("expected no upstream attempt once throttled, got %d calls", fp.calls)
	}
}

func TestExecuteAgentTaskBuildsDescriptorDrivenRequest(t *testing.T) {
	c, _ := newTestCoordinator(t)
	task := AgentTask{
		ID:       "t1",
		TenantID: "acme",
		Type:     agentregistry.TypeContent,
		Input:    `{"brief":"launch post"}`,
		Priority: router.PriorityMedium,
	}

	result, err := c.ExecuteAgentTask(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TaskID != "t1" {
		t.Fatalf("expected task id to round-trip, got %q", result.TaskID)
	}
	if result.Output == "" {
		t.Fatalf("expected non-empty output")
	}
}

func asValidationError(err error, target **ValidationError) bool {
	if ve, ok := err.(*ValidationError); ok {
		*target = ve
		return true
	}
	return false
}

func asBudgetExceeded(err error, target **BudgetExceededError) bool {
	if be, ok := err.(*BudgetExceededError); ok {
		*target = be
		return true
	}
	return false
}
