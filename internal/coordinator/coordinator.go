// Package coordinator implements C5: the single entry point that gates a
// request against budget, routes it to a model, consults the cache, dispatches
// upstream, and fills the cache/ledger best-effort — the seven-step contract
// of spec.md §4.5, grounded on internal/orchestration/orchestrator.go's
// dispatch shape.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/cache"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/provider"
	"github.com/contentops/aicore/internal/router"
)

// defaultTTL mirrors spec.md §4.5 step 5's fallback cache_ttl.
const defaultTTL = 86400 * time.Second

// ValidationError is spec.md §7's Validation error taxonomy member.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// BudgetExceededError is spec.md §7's BudgetExceeded error taxonomy member.
type BudgetExceededError struct {
	TenantID string
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for tenant %s", e.TenantID)
}

// Coordinator wires C1-C4 together behind the single complete() operation.
type Coordinator struct {
	Providers *provider.Registry
	Router    *router.Router
	Cache     *cache.Cache
	Ledger    *ledger.Ledger

	// ProviderFor resolves a chosen model id to the Provider that serves it.
	// The router only knows model ids; this callback is how the coordinator
	// finds the adapter instance (grounded on internal/orchestration/router.go
	// resolving a provider name from a model string).
	ProviderFor func(modelID string) (provider.Provider, bool)
}

// Complete implements spec.md §4.5's complete(request) contract.
func (c *Coordinator) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if _, multiple := req.SystemPrompt(); multiple {
		return nil, &ValidationError{Reason: "system role must be unique and first"}
	}
	for i, m := range req.Messages {
		if m.Role == "system" && i > 0 {
			return nil, &ValidationError{Reason: "system role must be unique and first"}
		}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return nil, &ValidationError{Reason: "temperature out of range [0,2]"}
	}

	throttled, err := c.Ledger.Throttled(ctx, req.TenantID)
	if err != nil {
		log.Printf("coordinator: budget check for %s: %v", req.TenantID, err)
	}
	if throttled {
		return nil, &BudgetExceededError{TenantID: req.TenantID}
	}

	model := c.Router.Select(req.Model, router.PriorityMedium)
	req.Model = model

	custom := req.CacheKey != ""
	key := req.CacheKey
	if !custom {
		key = cache.Fingerprint(model, req.Temperature, req.Messages)
	}

	if entry, hit := c.Cache.Get(ctx, key, custom); hit {
		return &provider.CompletionResponse{
			Text:        entry.Text,
			ChosenModel: entry.ChosenModel,
			Tokens:      entry.Tokens,
			CostUSD:     entry.CostUSD,
			Cached:      true,
		}, nil
	}

	p, ok := c.ProviderFor(model)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("no provider registered for model %q", model)}
	}

	resp, err := c.dispatchWithRetry(ctx, p, req)
	if err != nil {
		return nil, err
	}
	resp.Cached = false
	if len(req.ResponseSchema) > 0 && !json.Valid([]byte(resp.Text)) {
		return nil, &ValidationError{Reason: "response is not valid JSON"}
	}

	ttl := time.Duration(req.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultTTL
	}

	var g errgroup.Group
	g.Go(func() error {
		c.Cache.Set(ctx, key, custom, cache.Entry{
			Text:        resp.Text,
			ChosenModel: resp.ChosenModel,
			Tokens:      resp.Tokens,
			CostUSD:     resp.CostUSD,
		}, ttl)
		return nil
	})
	g.Go(func() error {
		if _, err := c.Ledger.Track(ctx, ledger.Entry{
			TenantID:  req.TenantID,
			Provider:  p.Name(),
			Model:     resp.ChosenModel,
			CostUSD:   resp.CostUSD,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			log.Printf("coordinator: ledger track failed for %s: %v", req.TenantID, err)
		}
		return nil
	})
	_ = g.Wait() // both steps are best-effort; neither failure suppresses the response

	return resp, nil
}

// dispatchWithRetry implements spec.md §4.5 step 4: propagate UpstreamError,
// retrying once after retry_after on a bounded rate_limited failure.
func (c *Coordinator) dispatchWithRetry(ctx context.Context, p provider.Provider, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	resp, err := p.CreateCompletion(ctx, req)
	if err == nil {
		return resp, nil
	}

	var uerr *provider.UpstreamError
	if !errors.As(err, &uerr) || !uerr.Retryable() {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(uerr.RetryAfterSeconds) * time.Second):
	}

	return p.CreateCompletion(ctx, req)
}

// AgentTaskResult is spec.md §3's Agent Task Result.
type AgentTaskResult struct {
	TaskID      string
	Type        agentregistry.Type
	Output      string
	Tokens      provider.TokenUsage
	CostUSD     float64
	ExecutionMS int64
}

// AgentTask is spec.md §3's Agent Task.
type AgentTask struct {
	ID       string
	TenantID string
	Type     agentregistry.Type
	Input    string // opaque, JSON-serialised by the caller
	Context  string // optional, becomes a second user turn
	Priority router.Priority
}

// ExecuteAgentTask implements spec.md §4.5's execute_agent_task(task):
// builds a Completion Request from the task's Agent Descriptor, routes by
// priority per §4.4 rules 2-3, and measures execution_ms across the full
// coordinator path including cache hits.
func (c *Coordinator) ExecuteAgentTask(ctx context.Context, task AgentTask) (*AgentTaskResult, error) {
	descriptor, ok := agentregistry.Lookup(task.Type)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown agent type %q", task.Type)}
	}

	messages := []provider.Message{
		{Role: "system", Content: descriptor.SystemPrompt},
		{Role: "user", Content: task.Input},
	}
	if task.Context != "" {
		messages = append(messages, provider.Message{Role: "user", Content: task.Context})
	}

	started := time.Now()

	model := c.Router.Select("", task.Priority)
	req := provider.CompletionRequest{
		Messages:        messages,
		Model:           model,
		Temperature:     descriptor.DefaultTemperature,
		TenantID:        task.TenantID,
		CacheTTLSeconds: descriptor.DefaultCacheTTLSeconds,
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AgentTaskResult{
		TaskID:      task.ID,
		Type:        task.Type,
		Output:      resp.Text,
		Tokens:      resp.Tokens,
		CostUSD:     resp.CostUSD,
		ExecutionMS: time.Since(started).Milliseconds(),
	}, nil
}
