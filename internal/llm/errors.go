package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Error taxonomy for outbound LLM calls. Every error leaving this package's
// clients (via Classify) wraps exactly one of these, so callers only ever
// need errors.Is.
var (
	// ErrTransport covers network failures, provider 5xx and timeouts.
	ErrTransport = errors.New("llm transport error")
	// ErrRateLimit means the provider (or our own outbound limiter) throttled the call.
	ErrRateLimit = errors.New("llm rate limited")
	// ErrAuth means the provider rejected our credentials.
	ErrAuth = errors.New("llm credentials rejected")
)

// Classify wraps err with the sentinel of the class it belongs to.
// Errors that already carry a sentinel are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrAuth) {
		return err
	}

	switch statusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimit, err)
	}

	// Timeouts, cancellations, DNS failures and 5xx all look the same to
	// callers: the provider could not be reached in time.
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// statusCode digs the HTTP status out of the SDK-specific error types.
func statusCode(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	return 0
}

// Kind returns a short label for err, used in call accounting and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
