package provider

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// GeminiAdapter implements Provider over Google's Gemini API using the
// official google.golang.org/genai SDK — declared in the teacher's go.mod but
// never wired to an adapter there; generalizing
// internal/llm/provider/vertexai.go's "system instruction kept separate from
// the conversation" shape onto the SDK client instead of hand-rolled HTTP.
type GeminiAdapter struct {
	client  *genai.Client
	cb      *CircuitBreaker
	limiter *VendorLimiter
}

// NewGeminiAdapter builds an adapter around an API key.
func NewGeminiAdapter(ctx context.Context, apiKey string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:  client,
		cb:      NewCircuitBreaker(5, 30*time.Second),
		limiter: NewVendorLimiter(10, 20),
	}, nil
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return guardedCall(a.Name(), a.cb, a.limiter, func() (*CompletionResponse, error) {
		return a.doCreateCompletion(ctx, req)
	})
}

func (a *GeminiAdapter) doCreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	system, contents := toGeminiContents(req.Messages)

	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if max := clampMaxTokens(req.MaxOutputTokens, model); max > 0 {
		cfg.MaxOutputTokens = int32(max)
	}

	resp, err := a.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, &UpstreamError{Provider: a.Name(), Kind: UpstreamTransient, Message: err.Error(), Cause: err}
	}

	text := resp.Text()

	var promptTok, completionTok int
	if resp.UsageMetadata != nil {
		promptTok = int(resp.UsageMetadata.PromptTokenCount)
		completionTok = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if promptTok == 0 && completionTok == 0 {
		promptTok, completionTok = estimateTokens(totalMessageChars(req.Messages), len(text))
	}
	cost, _ := DefaultPricingTable.Estimate(model, promptTok, completionTok)

	return &CompletionResponse{
		Text:        text,
		ChosenModel: model,
		Tokens:      TokenUsage{Prompt: promptTok, Completion: completionTok, Total: promptTok + completionTok},
		CostUSD:     cost,
	}, nil
}

func toGeminiContents(msgs []Message) (system string, contents []*genai.Content) {
	for _, m := range msgs {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return system, contents
}

func totalMessageChars(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return n
}
