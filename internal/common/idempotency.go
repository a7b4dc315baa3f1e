package common

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"
)

// Idem provides an Idempotency-Key middleware backed by an in-process store.
// A second request carrying a key seen within the TTL is rejected instead of
// re-executed, which guards settlement endpoints against double submission
// from a retrying front-end.
type Idem struct {
	TTL time.Duration
	Now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func (i *Idem) now() time.Time {
	if i != nil && i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Idem) ttl() time.Duration {
	if i == nil || i.TTL <= 0 {
		return 10 * time.Minute
	}
	return i.TTL
}

// Claim registers the key and reports whether it was first seen. Expired
// entries are pruned opportunistically.
func (i *Idem) Claim(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	if i.seen == nil {
		i.seen = make(map[string]time.Time)
	}
	for k, expiry := range i.seen {
		if now.After(expiry) {
			delete(i.seen, k)
		}
	}
	if _, dup := i.seen[key]; dup {
		return false
	}
	i.seen[key] = now.Add(i.ttl())
	return true
}

// Middleware enforces idempotency semantics for write endpoints.
func (i *Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !i.Claim(hashKey(header)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, "{\"error\":{\"code\":\"IDEMPOTENT_REPLAY\",\"message\":\"duplicate request\"}}")
			return
		}
		next.ServeHTTP(w, r)
	})
}
