package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Chain implements Provider by trying multiple providers in order. When a
// fallback succeeds, the providers that failed before it move to the back,
// so a dead network does not add latency to every alert.
type Chain struct {
	logger *slog.Logger

	mu        sync.Mutex
	providers []Provider
}

var _ Provider = (*Chain)(nil)

// NewChain creates a provider chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: append([]Provider(nil), providers...),
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize tries each provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for i, p := range c.Providers() {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i, "provider", result.Provider)
				c.demote(i)
			}
			return result, nil
		}

		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// demote moves every provider before idx behind the rest.
func (c *Chain) demote(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx <= 0 || idx >= len(c.providers) {
		return
	}
	rotated := make([]Provider, 0, len(c.providers))
	rotated = append(rotated, c.providers[idx:]...)
	c.providers = append(rotated, c.providers[:idx]...)
}

// Health returns an error only if every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	providers := c.Providers()
	var lastErr error
	healthy := 0
	for _, p := range providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}
	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(providers), lastErr)
	}
	return nil
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.Providers() {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in their current order.
func (c *Chain) Providers() []Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Provider(nil), c.providers...)
}

// ChainError aggregates errors from all providers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}
