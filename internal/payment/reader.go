package payment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// SimulatedReader emulates an attached card reader. It waits Latency before
// answering and declines any amount above DeclineOver when that is set.
// A context that expires while the reader is "processing" yields a timed-out
// response rather than an error so the checkout flow can surface it to the
// cashier as a retryable condition.
type SimulatedReader struct {
	Latency     time.Duration
	DeclineOver pricing.Money
	Logger      zerolog.Logger

	seq atomic.Int64
}

// Authorize implements Provider.
func (r *SimulatedReader) Authorize(ctx context.Context, req AuthRequest) (AuthResponse, error) {
	if req.Amount <= 0 {
		return AuthResponse{}, fmt.Errorf("payment: amount must be positive, got %d", req.Amount)
	}
	if r.Latency > 0 {
		timer := time.NewTimer(r.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			r.Logger.Warn().Str("checkout_id", req.CheckoutID).Msg("card reader timed out")
			return AuthResponse{Result: ResultTimedOut, Message: "reader timed out"}, nil
		case <-timer.C:
		}
	}
	if r.DeclineOver > 0 && req.Amount > r.DeclineOver {
		return AuthResponse{Result: ResultDeclined, Message: "issuer declined"}, nil
	}
	ref := fmt.Sprintf("AUTH-%06d", r.seq.Add(1))
	return AuthResponse{Result: ResultApproved, Reference: ref}, nil
}
