package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/telemetry"
)

// VisionProvider implements Describer over an ordered list of vision clients,
// with the same limiter, timeout, failover and accounting as CompletionProvider.
type VisionProvider struct {
	clients []llm.VisionClient
	prompt  string
	limiter *rate.Limiter
	timeout time.Duration
	acct    accountant
	logger  *zap.Logger
}

// NewVisionProvider creates a provider. recorder and metrics may be nil.
func NewVisionProvider(
	clients []llm.VisionClient,
	prompts *llm.Prompts,
	opts Options,
	recorder CallRecorder,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*VisionProvider, error) {
	prompt, err := prompts.Render(llm.PromptDetectDevice, nil)
	if err != nil {
		return nil, fmt.Errorf("rendering detection prompt: %w", err)
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if metrics == nil {
		metrics = telemetry.Nop()
	}

	return &VisionProvider{
		clients: clients,
		prompt:  prompt,
		limiter: opts.Limiter,
		timeout: opts.Timeout,
		acct:    accountant{recorder: recorder, metrics: metrics, logger: logger},
		logger:  logger,
	}, nil
}

// Describe asks the vision models, in order, what device the image shows.
func (p *VisionProvider) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(p.clients) == 0 {
		return "", fmt.Errorf("%w: no vision providers configured", llm.ErrAuth)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	for _, client := range p.clients {
		if err := waitForSlot(ctx, p.limiter); err != nil {
			return "", err
		}

		start := time.Now()
		answer, err := client.DescribeImage(ctx, p.prompt, image, mimeType)
		elapsed := time.Since(start)

		err = llm.Classify(err)
		p.acct.record(ctx, llm.PromptDetectDevice, client.ProviderName(), client.ModelName(), err, elapsed)
		if err == nil {
			return answer, nil
		}

		lastErr = fmt.Errorf("%s: %w", client.ProviderName(), err)
		if ctx.Err() != nil {
			break
		}
		p.logger.Warn("vision provider failed",
			zap.String("provider", client.ProviderName()),
			zap.Error(err),
		)
	}

	return "", lastErr
}
