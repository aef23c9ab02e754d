package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/telemetry"
)

// CompletionProvider implements Completer over an ordered list of LLM clients.
// The first client is primary; the others are only tried when the previous
// one failed and time is left. A client is never called twice for the same
// request. There are no retries at this layer.
type CompletionProvider struct {
	clients []llm.Client
	prompts *llm.Prompts
	limiter *rate.Limiter
	timeout time.Duration
	acct    accountant
	logger  *zap.Logger
}

// NewCompletionProvider creates a provider. recorder and metrics may be nil.
func NewCompletionProvider(
	clients []llm.Client,
	prompts *llm.Prompts,
	opts Options,
	recorder CallRecorder,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *CompletionProvider {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	return &CompletionProvider{
		clients: clients,
		prompts: prompts,
		limiter: opts.Limiter,
		timeout: opts.Timeout,
		acct:    accountant{recorder: recorder, metrics: metrics, logger: logger},
		logger:  logger,
	}
}

// Complete renders the prompt and sends it to the providers in order.
func (p *CompletionProvider) Complete(ctx context.Context, prompt llm.PromptID, vars map[string]string) (string, error) {
	if len(p.clients) == 0 {
		return "", fmt.Errorf("%w: no LLM providers configured", llm.ErrAuth)
	}

	text, err := p.prompts.Render(prompt, vars)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	for i, client := range p.clients {
		// Blocks until a token is available or the call's deadline makes waiting pointless.
		if err := waitForSlot(ctx, p.limiter); err != nil {
			return "", err
		}

		raw, err := p.call(ctx, client, prompt, text)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < len(p.clients)-1 {
			p.logger.Warn("LLM provider failed, trying next",
				zap.String("prompt", string(prompt)),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return "", lastErr
}

func (p *CompletionProvider) call(ctx context.Context, client llm.Client, prompt llm.PromptID, text string) (string, error) {
	start := time.Now()
	raw, err := client.Complete(ctx, llm.SystemPrompt, text)
	elapsed := time.Since(start)

	err = llm.Classify(err)
	p.acct.record(ctx, prompt, client.ProviderName(), client.ModelName(), err, elapsed)

	if err != nil {
		return "", fmt.Errorf("%s: %w", client.ProviderName(), err)
	}
	return raw, nil
}

// Verify pings every provider. A rejected credential is fatal and returned;
// other failures (provider unreachable) are only logged, since the service
// can still answer with invalid entries.
func (p *CompletionProvider) Verify(ctx context.Context) error {
	if len(p.clients) == 0 {
		return fmt.Errorf("%w: no LLM providers configured", llm.ErrAuth)
	}

	for _, client := range p.clients {
		err := client.Ping(ctx)
		if err == nil {
			p.logger.Info("LLM provider ready",
				zap.String("provider", client.ProviderName()),
				zap.String("model", client.ModelName()),
			)
			continue
		}

		err = llm.Classify(err)
		if errors.Is(err, llm.ErrAuth) {
			return fmt.Errorf("verifying %s: %w", client.ProviderName(), err)
		}
		p.logger.Warn("LLM provider unreachable at startup",
			zap.String("provider", client.ProviderName()),
			zap.Error(err),
		)
	}
	return nil
}
