package workflow

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/automation"
	"github.com/contentops/aicore/internal/bus"
	"github.com/contentops/aicore/internal/cache"
	"github.com/contentops/aicore/internal/coordinator"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/provider"
	"github.com/contentops/aicore/internal/router"
)

type fakeCollabProvider struct{}

func (fakeCollabProvider) Name() string { return "fake" }

func (fakeCollabProvider) CreateCompletion(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	return &provider.CompletionResponse{
		Text:        "contribution for " + req.Messages[0].Content,
		ChosenModel: req.Model,
		Tokens:      provider.TokenUsage{Prompt: 5, Completion: 5, Total: 10},
		CostUSD:     0.001,
	}, nil
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	table := provider.NewPricingTable(provider.DefaultModelTable)

	coord := &coordinator.Coordinator{
		Router: router.New(table, "gpt-4o"),
		Cache:  cache.New(client),
		Ledger: ledger.New(client),
		ProviderFor: func(modelID string) (provider.Provider, bool) {
			return fakeCollabProvider{}, true
		},
	}

	return &Orchestrator{
		Coordinator: coord,
		Bus:         bus.NewBus(),
		Store:       NewMemoryStore(),
		Configs: func(ctx context.Context, tenantID string) (automation.Config, error) {
			return automation.Config{
				Mode: automation.ModeAssisted,
				EnabledTypes: map[string]bool{
					string(agentregistry.TypeContent):  true,
					string(agentregistry.TypeStrategy): true,
				},
			}, nil
		},
	}
}

func TestExecuteCollaborativeRunsAllEnabledParticipants(t *testing.T) {
	o := newTestOrchestrator(t)
	for _, t2 := range []string{string(agentregistry.TypeContent), string(agentregistry.TypeStrategy)} {
		o.Bus.Register(t2)
	}

	result, err := o.ExecuteCollaborative(context.Background(), "acme", "launch", []agentregistry.Type{agentregistry.TypeContent, agentregistry.TypeStrategy}, "brief")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "completed" {
		t.Fatalf("expected completed status, got %q", result.Status)
	}
	if len(result.Contributions) != 2 {
		t.Fatalf("expected 2 contributions, got %d", len(result.Contributions))
	}
	if result.SharedContext[string(agentregistry.TypeContent)] == nil {
		t.Fatalf("expected shared_context to be populated by content's output")
	}
	if result.Efficiency <= 0 {
		t.Fatalf("expected positive efficiency score, got %v", result.Efficiency)
	}
}

func TestOrchestratorPersistsStateAndCheckpoints(t *testing.T) {
	o := newTestOrchestrator(t)
	for _, t2 := range []string{string(agentregistry.TypeContent), string(agentregistry.TypeStrategy)} {
		o.Bus.Register(t2)
	}

	result, err := o.ExecuteCollaborative(context.Background(), "acme", "launch", []agentregistry.Type{agentregistry.TypeContent, agentregistry.TypeStrategy}, "brief")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := o.Status(result.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.WorkflowID != result.ID {
		t.Fatalf("expected status to return the persisted state for %s, got %+v", result.ID, state)
	}

	states, err := o.List(result.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 persisted state for the workflow, got %d", len(states))
	}

	checkpoint, err := o.LatestCheckpoint(result.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkpoint == nil || checkpoint.StepID != string(agentregistry.TypeStrategy) {
		t.Fatalf("expected latest checkpoint to be strategy's step, got %+v", checkpoint)
	}

	if err := o.Delete(result.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Status(result.ID); err == nil {
		t.Fatal("expected state to be gone after delete")
	}
}

func TestExecuteCollaborativeSkipsDisabledTypes(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Bus.Register(string(agentregistry.TypeContent))
	o.Bus.Register(string(agentregistry.TypeCrisis))

	result, err := o.ExecuteCollaborative(context.Background(), "acme", "launch", []agentregistry.Type{agentregistry.TypeContent, agentregistry.TypeCrisis}, "brief")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Contributions) != 1 {
		t.Fatalf("expected crisis (not enabled) to be skipped, got %d contributions", len(result.Contributions))
	}
}

func TestExecuteCollaborativeRejectsEmptyParticipants(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.ExecuteCollaborative(context.Background(), "acme", "launch", nil, "brief")
	if err == nil {
		t.Fatal("expected an error for zero participants")
	}
	if _, ok := err.(*coordinator.ValidationError); !ok {
		t.Fatalf("expected a *coordinator.ValidationError, got %T: %v", err, err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
}

func TestExecuteWithAutomationReturnsDecision(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Bus.Register(string(agentregistry.TypeContent))

	_, decision, err := o.ExecuteWithAutomation(context.Background(), "acme", "launch", []agentregistry.Type{agentregistry.TypeContent}, "brief", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Auto || !decision.RequiresApproval {
		t.Fatalf("expected assisted mode to require approval, got %+v", decision)
	}
}

func TestExecuteWithLearningAlwaysIncludesBestPracticeReminder(t *testing.T) {
	o := newTestOrchestrator(t)

	_, recs, err := o.ExecuteWithLearning(context.Background(), "acme", agentregistry.TypeContent, "brief", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, r := range recs {
		if r.Reason == "best_practice_reminder" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a best_practice_reminder recommendation, got %+v", recs)
	}
}
