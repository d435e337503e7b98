// Package provider implements C1: a uniform Completion interface over each
// heterogeneous LLM vendor, plus the process-wide Model Descriptor table used
// by the router and the cost ledger.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is one turn of a Completion Request's conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is the vendor-agnostic shape every adapter accepts.
//
// Invariant: the "system" role, if present, is unique and first. Coordinator
// validation rejects a request violating this before it ever reaches an
// adapter (see internal/coordinator).
type CompletionRequest struct {
	Messages        []Message
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TenantID        string
	CacheKey        string
	CacheTTLSeconds int

	// ResponseSchema, if set, marks the request as expecting JSON output. The
	// adapters do not forward it to the vendor. The coordinator validates the
	// returned content parses as JSON against no further semantics.
	ResponseSchema json.RawMessage
}

// SystemPrompt returns the request's system message content, if any, and
// whether more than one system turn was supplied (a Validation error case).
func (r CompletionRequest) SystemPrompt() (prompt string, multiple bool) {
	seen := false
	for _, m := range r.Messages {
		if m.Role != "system" {
			continue
		}
		if seen {
			return prompt, true
		}
		prompt = m.Content
		seen = true
	}
	return prompt, false
}

// CompletionResponse is the vendor-agnostic completion result.
//
// Invariant: Tokens.Total == Tokens.Prompt + Tokens.Completion; CostUSD >= 0;
// if Cached, no upstream call occurred for this response.
type CompletionResponse struct {
	Text        string
	ChosenModel string
	Tokens      TokenUsage
	CostUSD     float64
	Cached      bool
}

// TokenUsage mirrors spec.md's Completion Response token triple.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// UpstreamErrorKind enumerates spec.md §7's UpstreamError variant tags.
type UpstreamErrorKind string

const (
	UpstreamAuth         UpstreamErrorKind = "auth"
	UpstreamRateLimited  UpstreamErrorKind = "rate_limited"
	UpstreamBadRequest   UpstreamErrorKind = "bad_request"
	UpstreamTransient    UpstreamErrorKind = "transient"
	UpstreamUnavailable  UpstreamErrorKind = "unavailable"
)

// UpstreamError is the typed failure every adapter surfaces. It carries a
// payload (Kind, optional RetryAfterSeconds) rather than a bare string so the
// coordinator's retry policy can switch on Kind instead of parsing messages.
type UpstreamError struct {
	Provider          string
	Kind              UpstreamErrorKind
	Message           string
	RetryAfterSeconds int
	Cause             error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Kind)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// Retryable reports whether the coordinator may retry once per spec.md §4.5
// step 4 (only rate_limited with a bounded RetryAfterSeconds).
func (e *UpstreamError) Retryable() bool {
	return e.Kind == UpstreamRateLimited && e.RetryAfterSeconds > 0
}

// Provider is the single operation every vendor adapter implements: given a
// Completion Request, return a Completion Response. Adapters never compute
// CostUSD from vendor-reported cost — each adapter prices the response itself
// via DefaultPricingTable keyed on the model id.
type Provider interface {
	Name() string
	CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// estimateTokens is the deterministic fallback used when a vendor response
// carries no usage block: prompt and completion tokens are both
// ceil(len(chars)/4). No byte-pair or word-level tokenisation is done.
func estimateTokens(promptChars, completionChars int) (prompt, completion int) {
	prompt = (promptChars + 3) / 4
	completion = (completionChars + 3) / 4
	return prompt, completion
}
