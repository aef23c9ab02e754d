package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements Client and VisionClient using Claude's messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	model    string
	settings Settings
}

// NewAnthropicClient creates a new Claude-backed client.
// SDK-level retries are disabled: retry policy belongs to callers.
func NewAnthropicClient(apiKey string, model string, settings Settings) *AnthropicClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &AnthropicClient{
		client:   &client,
		model:    model,
		settings: settings,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

func (a *AnthropicClient) Complete(ctx context.Context, system string, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.settings.MaxTokens),
		Temperature: param.NewOpt(a.settings.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", Classify(fmt.Errorf("anthropic API call: %w", err))
	}

	return textOf(message), nil
}

func (a *AnthropicClient) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   300,
		Temperature: param.NewOpt(0.0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", Classify(fmt.Errorf("anthropic vision call: %w", err))
	}

	return strings.TrimSpace(textOf(message)), nil
}

func (a *AnthropicClient) Ping(ctx context.Context) error {
	if _, err := a.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return Classify(fmt.Errorf("anthropic list models: %w", err))
	}
	return nil
}

// textOf concatenates the text blocks of a reply.
func textOf(message *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
