// Package provider turns the raw LLM clients into the services the rest of
// the application depends on: a prompt-addressed Completer and an image
// Describer. It owns everything that happens around a single outbound call:
// outbound rate limiting, the per-call timeout, provider failover, call
// accounting and metrics.
package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/model"
	"github.com/fleveque/crm-service/internal/telemetry"
)

// Completer is the LLM Client contract: render prompt id with vars, send it,
// return the raw reply. Errors wrap llm.ErrTransport, llm.ErrRateLimit or llm.ErrAuth.
type Completer interface {
	Complete(ctx context.Context, prompt llm.PromptID, vars map[string]string) (string, error)
}

// Describer answers the device-detection prompt about an image.
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}

// CallRecorder persists call accounting. storage.LLMCallRepository satisfies it.
type CallRecorder interface {
	Create(ctx context.Context, call *model.LLMCall) error
}

// NopRecorder discards call records. Used when accounting is disabled.
type NopRecorder struct{}

func (NopRecorder) Create(context.Context, *model.LLMCall) error { return nil }

// Options configures the behavior shared by both providers.
type Options struct {
	// Limiter is shared by every outbound call of the process.
	Limiter *rate.Limiter
	// Timeout bounds one Complete/Describe call, limiter wait included.
	Timeout time.Duration
}

// NewLimiter converts a per-minute budget into a token bucket.
// rate.Every returns a rate.Limit from a time interval between events.
func NewLimiter(ratePerMinute int, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), burst)
}

// waitForSlot blocks on the shared limiter. A wait that cannot finish before
// the deadline is a rate limit; a caller that went away is a transport error.
func waitForSlot(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: waiting for outbound slot: %w", llm.ErrTransport, err)
		}
		return fmt.Errorf("%w: waiting for outbound slot: %w", llm.ErrRateLimit, err)
	}
	return nil
}

// accountant records every provider attempt to storage and metrics.
type accountant struct {
	recorder CallRecorder
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

func (a accountant) record(ctx context.Context, prompt llm.PromptID, providerName, modelName string, callErr error, elapsed time.Duration) {
	durationMs := elapsed.Milliseconds()
	call := &model.LLMCall{
		Prompt:     string(prompt),
		Provider:   providerName,
		Model:      modelName,
		Success:    callErr == nil,
		DurationMs: &durationMs,
	}

	outcome := "ok"
	if callErr != nil {
		outcome = llm.Kind(callErr)
		call.ErrorKind = &outcome
	}

	a.metrics.RecordCall(ctx, string(prompt), providerName, outcome, elapsed)

	// The call's own context may already be past its deadline; accounting
	// should still land.
	if err := a.recorder.Create(context.WithoutCancel(ctx), call); err != nil {
		a.logger.Error("recording LLM call", zap.Error(err))
	}
}
