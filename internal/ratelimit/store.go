package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
)

// Limiter answers whether a keyed event fits inside its window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// MemoryLimiter adapts an in-process limiter store to the Limiter
// interface. A single terminal does not need shared limiter state.
type MemoryLimiter struct {
	Prefix string
	store  limiter.Store
}

// NewMemoryLimiter builds a limiter backed by an in-memory store.
func NewMemoryLimiter(prefix string) *MemoryLimiter {
	return &MemoryLimiter{Prefix: prefix, store: memory.NewStore()}
}

// Allow registers one event for the key and reports the window state.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l == nil || l.store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	lctx, err := l.store.Get(ctx, l.Prefix+key, rate)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}
