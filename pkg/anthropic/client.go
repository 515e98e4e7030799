// Package anthropic is a narrow client for the Anthropic Messages API,
// shaped for single-turn JSON extraction calls.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends one extraction prompt and returns the model's reply.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single-turn request. Prefill, when set, is sent as
// the start of the assistant turn and is echoed at the head of the
// response text.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Prompt      string
	Prefill     string
	Temperature *float64
}

// SystemBlock is one block of the system prompt.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a prompt cache breakpoint.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// CachedSystem builds a single system block with a cache breakpoint. The
// instructions for a document type repeat across documents.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}

// MessageResponse is the reply to a MessageRequest.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// Truncated reports whether generation stopped at the token limit.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == string(sdk.StopReasonMaxTokens)
}

// TokenUsage counts the tokens billed for one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// USD per million tokens: input, output.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-1-20250805":   {15.00, 75.00},
}

// EstimateCost returns the USD cost of u on model, or 0 for unknown models.
// Cache writes bill at 1.25x input and cache reads at 0.1x.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	input := float64(u.InputTokens) + 1.25*float64(u.CacheCreationInputTokens) + 0.1*float64(u.CacheReadInputTokens)
	return (input*p[0] + float64(u.OutputTokens)*p[1]) / 1e6
}

// LogCost logs token usage and estimated cost for one extraction call.
func (u TokenUsage) LogCost(model, documentType string) {
	zap.L().Info("anthropic: extraction usage",
		zap.String("model", model),
		zap.String("document_type", documentType),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// StatusCode returns the HTTP status of an API error, or 0 if err did not
// come from an API response.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by the SDK. SDK retries are disabled;
// callers own the retry policy.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &sdkClient{client: sdk.NewClient(append(base, opts...)...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, buildParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg, req.Prefill), nil
}

func buildParams(req MessageRequest) sdk.MessageNewParams {
	msgs := []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))}
	if req.Prefill != "" {
		msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(req.Prefill)))
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
	}
	if len(req.System) > 0 {
		params.System = systemParams(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func systemParams(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, 0, len(blocks))
	for _, b := range blocks {
		p := sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl != nil {
			p.CacheControl = sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				p.CacheControl.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
		}
		out = append(out, p)
	}
	return out
}

// fromSDKMessage joins the text blocks of msg behind the prefill.
func fromSDKMessage(msg *sdk.Message, prefill string) *MessageResponse {
	var text strings.Builder
	text.WriteString(prefill)
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}
