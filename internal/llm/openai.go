package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client and VisionClient using OpenAI's chat completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	visionModel string
	settings    Settings
}

// NewOpenAIClient creates a new OpenAI-backed client. baseURL may be empty;
// set it to target an OpenAI-compatible gateway.
func NewOpenAIClient(apiKey, baseURL, model, visionModel string, settings Settings) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		visionModel: visionModel,
		settings:    settings,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string    { return o.model }

// Complete asks for a JSON object response. JSON mode guarantees well-formed
// JSON but not our schema, so the reply still goes through the parser.
func (o *OpenAIClient) Complete(ctx context.Context, system string, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature(o.settings.Temperature),
		MaxTokens:   o.settings.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", Classify(fmt.Errorf("openai API call: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrTransport)
	}

	return resp.Choices[0].Message.Content, nil
}

// DescribeImage sends the image inline as a data URL together with the prompt.
func (o *OpenAIClient) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		Temperature: temperature(0),
		MaxTokens:   300,
	})
	if err != nil {
		return "", Classify(fmt.Errorf("openai vision call: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrTransport)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Ping lists models, which is the cheapest authenticated call the API offers.
func (o *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return Classify(fmt.Errorf("openai list models: %w", err))
	}
	return nil
}

// temperature converts the configured value for go-openai. The request field
// is tagged omitempty, so a literal 0 is never sent and the API applies its
// default of 1; the smallest float32 is sent instead.
func temperature(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}
