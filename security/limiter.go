package security

import (
	"sync"
	"time"
)

// Limiter enforces a sliding-log rate limit per client identity.
//
// State is process-local and non-durable: restarts reset every window, and
// horizontally scaled instances each enforce their own limit. Memory per
// identity is bounded by the request cap; stale identities are dropped once
// their last hit ages out of the window.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time

	now func() time.Time // injectable clock for tests
}

// NewLimiter creates a limiter admitting at most max requests per identity
// within each sliding window.
func NewLimiter(window time.Duration, max int) *Limiter {
	return &Limiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// SetPolicy replaces the window and cap, for config reloads. Existing hit
// logs are kept and re-evaluated under the new policy.
func (l *Limiter) SetPolicy(window time.Duration, max int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = window
	l.max = max
}

// Allow records a request for id and reports whether it is admitted.
// A rejected request is not recorded. The prune-check-append sequence runs
// under one lock so two concurrent requests cannot both sneak under the cap.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[id][:0]
	for _, t := range l.hits[id] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) == 0 {
		delete(l.hits, id)
	} else {
		l.hits[id] = kept
	}

	if len(kept) >= l.max {
		return false
	}

	l.hits[id] = append(kept, now)
	return true
}
