// Package ai is the chat completion client behind the gateway's
// OpenAI-compatible proxy endpoint.
package ai

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"quest-gateway/internal/common/errors"
)

// Message is one conversational turn.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Completion is the model's reply plus accounting.
type Completion struct {
	ID           string
	Model        string
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Client produces a completion for a conversation. The concrete
// implementation calls the managed model API; tests substitute fakes.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// sdkClient implements Client over the official SDK.
type sdkClient struct {
	client sdk.Client
	model  string
}

// NewClient creates a client for the given model.
func NewClient(apiKey, model string) Client {
	return &sdkClient{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *sdkClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 1024,
	}

	// System turns become system blocks; the rest keep their roles.
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	if len(params.Messages) == 0 {
		return nil, errors.ValidationError("no user message found")
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.UpstreamError("chat completion failed", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Completion{
		ID:           msg.ID,
		Model:        string(msg.Model),
		Text:         text,
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
