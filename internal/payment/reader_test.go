package payment

import (
	"context"
	"testing"
	"time"
)

func TestSimulatedReaderApproves(t *testing.T) {
	reader := &SimulatedReader{}
	resp, err := reader.Authorize(context.Background(), AuthRequest{CheckoutID: "co-1", Amount: 1188})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !resp.Approved() {
		t.Fatalf("expected approval, got %q", resp.Result)
	}
	if resp.Reference == "" {
		t.Fatal("expected a reference")
	}
}

func TestSimulatedReaderDeclinesOverLimit(t *testing.T) {
	reader := &SimulatedReader{DeclineOver: 5000}
	resp, err := reader.Authorize(context.Background(), AuthRequest{CheckoutID: "co-1", Amount: 5001})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if resp.Result != ResultDeclined {
		t.Fatalf("expected decline, got %q", resp.Result)
	}
}

func TestSimulatedReaderTimesOutWithContext(t *testing.T) {
	reader := &SimulatedReader{Latency: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	resp, err := reader.Authorize(ctx, AuthRequest{CheckoutID: "co-1", Amount: 100})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if resp.Result != ResultTimedOut {
		t.Fatalf("expected timeout, got %q", resp.Result)
	}
}

func TestSimulatedReaderRejectsNonPositiveAmount(t *testing.T) {
	reader := &SimulatedReader{}
	if _, err := reader.Authorize(context.Background(), AuthRequest{Amount: 0}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}
