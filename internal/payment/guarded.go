package payment

import (
	"context"
	"errors"
	"time"

	"github.com/tillworks/backend-pos/internal/resilience"
)

// GuardedProvider wraps a card reader with retry and circuit-breaker logic.
// Declines are final and never retried; only transport errors and timeouts
// count against the breaker.
type GuardedProvider struct {
	Inner       Provider
	Breaker     *resilience.Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
}

// Authorize implements Provider. When the breaker is open ErrOpenCircuit is
// returned so the checkout can tell the cashier the reader is unavailable.
func (g GuardedProvider) Authorize(ctx context.Context, req AuthRequest) (AuthResponse, error) {
	if g.Inner == nil {
		return AuthResponse{}, errors.New("payment: provider not configured")
	}
	breaker := g.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(1, 1, time.Second)
	}
	maxAttempts := g.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := g.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	var lastErr error
	timedOut := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow(ctx) {
			return AuthResponse{}, resilience.ErrOpenCircuit
		}
		resp, err := g.Inner.Authorize(ctx, req)
		if err == nil && resp.Result != ResultTimedOut {
			breaker.Report(ctx, true)
			return resp, nil
		}
		timedOut = err == nil
		lastErr = err
		breaker.Report(ctx, false)
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(resilience.Backoff(baseBackoff, attempt, g.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return AuthResponse{Result: ResultTimedOut, Message: "reader timed out"}, nil
		case <-timer.C:
		}
	}
	if timedOut {
		return AuthResponse{Result: ResultTimedOut, Message: "reader timed out"}, nil
	}
	return AuthResponse{}, lastErr
}
