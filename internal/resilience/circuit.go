// Package resilience guards the register's external devices. Its one real
// client is the card reader: a flaky serial link must not wedge every
// checkout behind a blocking authorize call, so the breaker sheds swipes
// while the reader is misbehaving and probes it with single requests until
// it recovers.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var breakerNopLogger = zerolog.Nop()

// ErrOpenCircuit is returned when the breaker refuses a request because the
// guarded device is considered down.
var ErrOpenCircuit = errors.New("resilience: circuit open")

// State is the breaker position.
type State int

const (
	// Closed passes every request through and counts outcomes.
	Closed State = iota
	// Open sheds requests until the cool-off elapses.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker trips when the failure ratio over recent requests crosses a
// threshold. Counters decay by halving so an old bad spell does not keep
// the ratio pinned.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failed    int
	succeeded int
	minReq    int
	tripRatio float64
	openedAt  time.Time
	openFor   time.Duration
	target    string
	logger    *zerolog.Logger
}

// NewBreaker constructs a closed breaker. It trips once at least minRequests
// outcomes are recorded and the failure ratio reaches failureRatio, and
// stays open for openFor before probing.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if failureRatio > 1 {
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		state:     Closed,
		minReq:    minRequests,
		tripRatio: failureRatio,
		openFor:   openFor,
	}
}

// Allow reports whether a request may go to the device. An open breaker
// starts refusing immediately; once the cool-off has elapsed it flips to
// half-open and admits the caller as the probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) >= b.openFor {
		b.transitionLocked(ctx, HalfOpen)
		return true
	}
	return false
}

// Report feeds a request outcome back into the state machine. A half-open
// probe decides immediately: success closes the breaker, failure re-opens
// it for another cool-off.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		// Late reports from requests admitted before the trip.
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.succeeded++
	} else {
		b.failed++
	}

	total := b.failed + b.succeeded
	if total < b.minReq {
		return
	}
	if float64(b.failed)/float64(total) >= b.tripRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	if total > b.minReq*2 {
		// Halve the window so counters track recent behaviour.
		b.succeeded = int(math.Ceil(float64(b.succeeded) * 0.5))
		b.failed = int(math.Ceil(float64(b.failed) * 0.5))
	}
}

// Backoff returns the exponential delay before retry attempt n. Jitter is a
// fraction of the delay, e.g. 0.2 spreads retries by up to 20% either way so
// queued swipes do not hammer a recovering reader in lockstep.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(delta)
}

// WithTarget names the guarded device for metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.setGaugeLocked()
	return b
}

// WithLogger sets the logger for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.setGaugeLocked()
		return
	}
	b.state = next
	switch next {
	case Open:
		b.openedAt = time.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.failed = 0
	b.succeeded = 0
	b.setGaugeLocked()
	b.logTransition(ctx, prev, next)
}

func (b *Breaker) setGaugeLocked() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.targetLabel()).Set(stateGaugeValue(b.state))
}

func (b *Breaker) logTransition(ctx context.Context, from, to State) {
	label := b.targetLabel()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	logger := b.loggerFor(ctx)
	evt := logger.Info().
		Str("target", label).
		Str("from_state", from.String()).
		Str("to_state", to.String())
	if traceID := traceIDFromContext(ctx); traceID != "" {
		evt = evt.Str("trace_id", traceID)
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) targetLabel() string {
	if trimmed := strings.TrimSpace(b.target); trimmed != "" {
		return trimmed
	}
	return "card-reader"
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil {
		logger := ctxLogger.With().Logger()
		return &logger
	}
	if b.logger == nil {
		return &breakerNopLogger
	}
	return b.logger
}

func stateGaugeValue(state State) float64 {
	switch state {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if span.IsValid() {
		return span.TraceID().String()
	}
	return ""
}
