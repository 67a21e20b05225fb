package ai

import (
	"context"
	"errors"
	"time"

	"github.com/chatrdv/platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var chainTracer = otel.Tracer("chatrdv.internal.ai")

// Chain tries a fixed-priority list of providers for a single chat turn.
// A rate-limited or failed provider is recorded and the chain advances;
// only total exhaustion is fatal to the caller.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *logging.Logger
	metrics   Recorder
}

// Recorder receives per-attempt outcomes. Nil-safe on the caller side.
type Recorder interface {
	ObserveAttempt(provider, outcome string)
}

// NewChain builds a provider chain. Order is priority order.
func NewChain(providers []Provider, timeout time.Duration, metrics Recorder, logger *logging.Logger) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chain{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Complete runs the chain. On success the response carries the name of the
// provider that answered. On exhaustion the last recorded error is returned,
// or ErrAllProvidersDown when no provider could even be attempted.
func (c *Chain) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := chainTracer.Start(ctx, "ai.chain.complete")
	defer span.End()

	var lastErr error
	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := p.Complete(callCtx, req)
		cancel()
		if err == nil {
			resp.Provider = p.Name()
			span.SetAttributes(attribute.String("chatrdv.ai.provider", p.Name()))
			c.observe(p.Name(), "success")
			return resp, nil
		}

		lastErr = err
		var perr *ProviderError
		if errors.As(err, &perr) && perr.Kind == KindRateLimited {
			// Expected under load, not severe. Move on to the next provider.
			c.logger.Info("ai provider rate limited, advancing", "provider", p.Name())
			c.observe(p.Name(), "rate_limited")
			continue
		}
		c.logger.Warn("ai provider failed, advancing", "provider", p.Name(), "error", err)
		c.observe(p.Name(), "error")
	}

	span.RecordError(lastErr)
	if lastErr == nil {
		return Response{}, ErrAllProvidersDown
	}
	return Response{}, lastErr
}

func (c *Chain) observe(provider, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveAttempt(provider, outcome)
}
