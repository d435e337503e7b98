package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicVersion    = "2023-06-01"
	anthropicMaxRetries = 3
)

// AnthropicAdapter implements Provider over api.anthropic.com. Anthropic
// separates the system prompt from the message list (unlike OpenAI's inlined
// system role) — this is the vendor-shape difference spec.md §9's open
// question calls out. Grounded on pkg/llm/provider/anthropic.go.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cb      *CircuitBreaker
	limiter *VendorLimiter
}

// NewAnthropicAdapter builds an adapter around an API key.
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		apiKey:  apiKey,
		baseURL: anthropicBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		cb:      NewCircuitBreaker(5, 30*time.Second),
		limiter: NewVendorLimiter(10, 20),
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicAdapter) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return guardedCall(a.Name(), a.cb, a.limiter, func() (*CompletionResponse, error) {
		return a.doCreateCompletion(ctx, req)
	})
}

func (a *AnthropicAdapter) doCreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = "claude-haiku-4"
	}

	system, messages := splitSystemPrompt(req.Messages)
	maxTokens := clampMaxTokens(req.MaxOutputTokens, model)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	var resp anthropicResponse
	if err := a.doRequestWithRetry(ctx, body, &resp); err != nil {
		return nil, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	promptTok, completionTok := resp.Usage.InputTokens, resp.Usage.OutputTokens
	if promptTok == 0 && completionTok == 0 {
		promptTok, completionTok = estimateTokens(totalChars(messages)+len(system), len(text))
	}
	cost, _ := DefaultPricingTable.Estimate(model, promptTok, completionTok)

	return &CompletionResponse{
		Text:        text,
		ChosenModel: model,
		Tokens:      TokenUsage{Prompt: promptTok, Completion: completionTok, Total: promptTok + completionTok},
		CostUSD:     cost,
	}, nil
}

func splitSystemPrompt(msgs []Message) (system string, rest []anthropicMessage) {
	rest = make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		rest = append(rest, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return system, rest
}

func totalChars(msgs []anthropicMessage) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return n
}

func (a *AnthropicAdapter) doRequestWithRetry(ctx context.Context, reqBody anthropicRequest, result *anthropicResponse) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < anthropicMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return &UpstreamError{Provider: a.Name(), Kind: UpstreamTransient, Message: ctx.Err().Error(), Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := a.client.Do(httpReq)
		if err != nil {
			lastErr = &UpstreamError{Provider: a.Name(), Kind: UpstreamTransient, Message: err.Error(), Cause: err}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(result)
		}

		uerr := a.handleErrorResponse(resp)
		resp.Body.Close()
		if uerr.Kind == UpstreamRateLimited || uerr.Kind == UpstreamTransient {
			lastErr = uerr
			continue
		}
		return uerr
	}

	return lastErr
}

func (a *AnthropicAdapter) handleErrorResponse(resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(resp.Body)

	var errResp anthropicResponse
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		message = errResp.Error.Message
	}

	kind := httpStatusToKind(resp.StatusCode)
	retryAfter := 0
	if kind == UpstreamRateLimited {
		retryAfter = 2
	}

	return &UpstreamError{
		Provider:          a.Name(),
		Kind:              kind,
		Message:           message,
		RetryAfterSeconds: retryAfter,
	}
}
