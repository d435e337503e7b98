package provider

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockAdapter implements Provider over Amazon Bedrock's Converse API,
// which normalizes the message/system-prompt shape across the underlying
// model families (Anthropic-on-Bedrock, Titan) the way
// internal/llm/provider/vertexai.go normalizes Vertex's. Declared in the
// teacher's go.mod (bedrockruntime, bedrock) but never wired to an adapter
// there.
type BedrockAdapter struct {
	client  *bedrockruntime.Client
	cb      *CircuitBreaker
	limiter *VendorLimiter
}

// NewBedrockAdapter builds an adapter from an AWS SDK config.
func NewBedrockAdapter(cfg aws.Config) *BedrockAdapter {
	return &BedrockAdapter{
		client:  bedrockruntime.NewFromConfig(cfg),
		cb:      NewCircuitBreaker(5, 30*time.Second),
		limiter: NewVendorLimiter(5, 10),
	}
}

func (a *BedrockAdapter) Name() string { return "bedrock" }

func (a *BedrockAdapter) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return guardedCall(a.Name(), a.cb, a.limiter, func() (*CompletionResponse, error) {
		return a.doCreateCompletion(ctx, req)
	})
}

func (a *BedrockAdapter) doCreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = "bedrock-titan-text-express"
	}

	system, messages := toBedrockMessages(req.Messages)
	temp := float32(req.Temperature)
	maxTokens := int32(clampMaxTokens(req.MaxOutputTokens, model))
	if maxTokens == 0 {
		maxTokens = 1024
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(bedrockModelID(model)),
		Messages: messages,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(temp),
			MaxTokens:   aws.Int32(maxTokens),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	out, err := a.client.Converse(ctx, input)
	if err != nil {
		return nil, classifyBedrockError(a.Name(), err)
	}

	text := extractBedrockText(out.Output)

	var promptTok, completionTok int
	if out.Usage != nil {
		promptTok = int(aws.ToInt32(out.Usage.InputTokens))
		completionTok = int(aws.ToInt32(out.Usage.OutputTokens))
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

// bedrockModelID maps our table's logical id onto the Bedrock model ARN/ID
// namespace; unknown ids pass through unchanged so operators can point
// directly at a full Bedrock model id.
func bedrockModelID(logical string) string {
	switch logical {
	case "bedrock-anthropic-claude-3-sonnet":
		return "anthropic.claude-3-sonnet-20240229-v1:0"
	case "bedrock-titan-text-express":
		return "amazon.titan-text-express-v1"
	default:
		return logical
	}
}

func toBedrockMessages(msgs []Message) (system string, out []types.Message) {
	for _, m := range msgs {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return system, out
}

func extractBedrockText(output types.ConverseOutput) string {
	member, ok := output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var text string
	for _, block := range member.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	return text
}

func classifyBedrockError(providerName string, err error) *UpstreamError {
	var throttling *types.ThrottlingException
	var validation *types.ValidationException
	var accessDenied *types.AccessDeniedException
	switch {
	case errors.As(err, &throttling):
		return &UpstreamError{Provider: providerName, Kind: UpstreamRateLimited, Message: throttling.ErrorMessage(), RetryAfterSeconds: 2, Cause: err}
	case errors.As(err, &validation):
		return &UpstreamError{Provider: providerName, Kind: UpstreamBadRequest, Message: validation.ErrorMessage(), Cause: err}
	case errors.As(err, &accessDenied):
		return &UpstreamError{Provider: providerName, Kind: UpstreamAuth, Message: accessDenied.ErrorMessage(), Cause: err}
	default:
		return &UpstreamError{Provider: providerName, Kind: UpstreamTransient, Message: err.Error(), Cause: err}
	}
}
