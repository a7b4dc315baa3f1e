package payment

import (
	"context"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// Authorization outcomes returned by a card reader.
const (
	ResultApproved = "approved"
	ResultDeclined = "declined"
	ResultTimedOut = "timed_out"
)

// AuthRequest captures the information sent to the card reader for authorization.
type AuthRequest struct {
	CheckoutID string
	Amount     pricing.Money
}

// AuthResponse is the reader's verdict on an authorization attempt.
type AuthResponse struct {
	Result    string
	Reference string
	Message   string
}

// Approved reports whether the authorization succeeded.
func (r AuthResponse) Approved() bool {
	return r.Result == ResultApproved
}

// Provider abstracts the card reader attached to the terminal.
type Provider interface {
	Authorize(ctx context.Context, req AuthRequest) (AuthResponse, error)
}
