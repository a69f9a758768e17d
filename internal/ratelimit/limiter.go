package ratelimit

import (
	"sync"
	"time"
)

// visitor holds the admission record for a single client key. Timestamps are
// append-ordered, so expiring old entries is a prefix trim. The per-visitor
// mutex makes the prune-check-append sequence atomic for that key.
type visitor struct {
	mu   sync.Mutex
	seen []time.Time
}

// Limiter admits at most limit requests per client key in any trailing
// window. State is process-wide and in-memory only; it starts empty and is
// discarded on exit.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
}

// NewLimiter creates a sliding-window limiter allowing limit admissions per
// window for each key.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
	}
}

// Allow records an admission attempt for key at time now. It reports whether
// the request is admitted; on rejection, retryAfter holds the number of whole
// seconds until the oldest recorded admission leaves the window.
func (l *Limiter) Allow(key string, now time.Time) (ok bool, retryAfter int) {
	l.mu.Lock()
	v, found := l.visitors[key]
	if !found {
		v = &visitor{}
		l.visitors[key] = v
	}
	l.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := now.Add(-l.window)
	trim := 0
	for trim < len(v.seen) && v.seen[trim].Before(cutoff) {
		trim++
	}
	v.seen = v.seen[trim:]

	if len(v.seen) >= l.limit {
		wait := l.window - now.Sub(v.seen[0])
		retryAfter = int(wait / time.Second)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	v.seen = append(v.seen, now)
	return true, 0
}

// Limit returns the configured admissions per window.
func (l *Limiter) Limit() int {
	return l.limit
}
