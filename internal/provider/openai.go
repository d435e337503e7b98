package provider

import (
	"context"
	"errors"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Provider over api.openai.com via the
// sashabaranov/go-openai SDK, the same client supervisor.go already uses for
// its own agent-routing decisions. Retry/backoff shape (3 attempts, 2^attempt
// seconds) is grounded on internal/llm/provider/openai.go's
// doRequestWithRetry.
type OpenAIAdapter struct {
	client  *openai.Client
	cb      *CircuitBreaker
	limiter *VendorLimiter
}

// NewOpenAIAdapter builds an adapter around an API key.
func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:  openai.NewClient(apiKey),
		cb:      NewCircuitBreaker(5, 30*time.Second),
		limiter: NewVendorLimiter(10, 20),
	}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return guardedCall(a.Name(), a.cb, a.limiter, func() (*CompletionResponse, error) {
		return a.doCreateCompletion(ctx, req)
	})
}

func (a *OpenAIAdapter) doCreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	// OpenAI inlines the system role as an ordinary message, unlike the
	// vendors that separate it — kept verbatim here, no translation needed.
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := clampMaxTokens(req.MaxOutputTokens, model)

	var lastErr error
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return nil, &UpstreamError{Provider: a.Name(), Kind: UpstreamTransient, Message: ctx.Err().Error(), Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    msgs,
			Temperature: float32(req.Temperature),
			MaxTokens:   maxTokens,
		})
		if err != nil {
			uerr := classifyOpenAIError(a.Name(), err)
			lastErr = uerr
			if uerr.Kind == UpstreamRateLimited || uerr.Kind == UpstreamTransient {
				continue
			}
			return nil, uerr
		}

		return a.toCompletionResponse(req, model, resp), nil
	}

	return nil, lastErr
}

func (a *OpenAIAdapter) toCompletionResponse(req CompletionRequest, model string, resp openai.ChatCompletionResponse) *CompletionResponse {
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	promptTok, completionTok := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if promptTok == 0 && completionTok == 0 {
		promptTok, completionTok = estimateTokens(totalMessageChars(req.Messages), len(text))
	}

	cost, _ := DefaultPricingTable.Estimate(model, promptTok, completionTok)

	return &CompletionResponse{
		Text:        text,
		ChosenModel: model,
		Tokens:      TokenUsage{Prompt: promptTok, Completion: completionTok, Total: promptTok + completionTok},
		CostUSD:     cost,
	}
}

func clampMaxTokens(requested int, model string) int {
	d, ok := DefaultPricingTable.Lookup(model)
	if !ok || requested == 0 {
		if requested > 0 {
			return requested
		}
		return 1024
	}
	if requested > d.MaxOutputTokens {
		return d.MaxOutputTokens
	}
	return requested
}

func classifyOpenAIError(providerName string, err error) *UpstreamError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := httpStatusToKind(apiErr.HTTPStatusCode)
		return &UpstreamError{
			Provider:          providerName,
			Kind:              kind,
			Message:           apiErr.Message,
			RetryAfterSeconds: 1,
			Cause:             err,
		}
	}
	return &UpstreamError{Provider: providerName, Kind: UpstreamTransient, Message: err.Error(), Cause: err}
}
