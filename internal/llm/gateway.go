package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"analyst/internal/logging"
	"analyst/internal/progress"
)

// Config selects and configures a provider.
type Config struct {
	Provider string // openai (default) or gemini
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultTimeout bounds a call whose context carries no deadline.
const DefaultTimeout = 2 * time.Minute

// Gateway is the blocking request/response contract every role uses. It does
// not retry.
type Gateway struct {
	provider Provider
	timeout  time.Duration
}

// New builds a gateway for the configured provider.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	var p Provider
	switch cfg.Provider {
	case "", "openai":
		p = NewOpenAIProvider(cfg.Endpoint, cfg.APIKey, &http.Client{})
	case "gemini":
		g, err := NewGeminiProvider(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	logging.Boot("llm gateway: provider=%s endpoint=%s", p.Name(), cfg.Endpoint)
	return NewWithProvider(p, cfg.Timeout), nil
}

// NewWithProvider wraps an existing provider.
func NewWithProvider(p Provider, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{provider: p, timeout: timeout}
}

// Complete sends messages and returns the completion text. On failure it
// reports an error-stage event to the sink carried by ctx and returns a
// *ServiceError.
func (g *Gateway) Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("[%s] complete: model=%s messages=%d temperature=%.2f", g.provider.Name(), model, len(messages), temperature)

	text, err := g.provider.Complete(ctx, messages, model, temperature)
	if err != nil {
		var se *ServiceError
		if !errors.As(err, &se) {
			se = &ServiceError{Provider: g.provider.Name(), Model: model, Reason: "request failed", Err: err}
		}
		logging.APIError("[%s] complete failed after %v: %v", g.provider.Name(), time.Since(start), se)
		logging.Audit().LLMError(model, se)
		progress.Emit(progress.FromContext(ctx), progress.StageError, progress.StatusFailed, map[string]any{
			"error": se.Error(),
			"model": model,
		})
		return "", se
	}

	logging.API("[%s] complete: model=%s in %v response_len=%d", g.provider.Name(), model, time.Since(start), len(text))
	logging.Audit().Log(logging.AuditEvent{
		EventType:  logging.AuditLLMRequest,
		Target:     model,
		Success:    true,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return text, nil
}
