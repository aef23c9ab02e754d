// Package llm provides provider-agnostic access to the text and vision
// models the service delegates all reasoning to. Each provider SDK is
// wrapped behind the small interfaces below so the rest of the service
// never imports an SDK directly.
package llm

import "context"

// Client is a text-completion backend.
//
// Go interface design tip: keep interfaces small. Both OpenAI and Anthropic
// implement this, which is what lets the provider layer fail over between them.
type Client interface {
	// Complete sends one system + user prompt pair and returns the raw reply text.
	// Implementations make exactly one outbound call and never retry.
	Complete(ctx context.Context, system string, prompt string) (string, error)
	// Ping checks that the credentials are accepted.
	Ping(ctx context.Context) error
	ProviderName() string
	ModelName() string
}

// VisionClient answers a prompt about an image.
type VisionClient interface {
	DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	ProviderName() string
	ModelName() string
}

// Settings are the sampling parameters shared by every provider.
type Settings struct {
	Temperature float64
	MaxTokens   int
}
