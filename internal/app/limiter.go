package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FailureLimiter throttles clients that keep presenting a wrong API key.
// A nil *FailureLimiter allows everything.
type FailureLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time

	lastSweep time.Time
}

// NewFailureLimiter returns nil when limit <= 0, which disables throttling.
func NewFailureLimiter(limit int, interval time.Duration) *FailureLimiter {
	if limit <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &FailureLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Blocked reports whether client has used up its failures in the window.
func (l *FailureLimiter) Blocked(client string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := l.pruneLocked(client)
	return len(fresh) >= l.limit
}

// Fail records a failed attempt by client.
func (l *FailureLimiter) Fail(client string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked()
	fresh := append(l.pruneLocked(client), l.now())
	l.history[client] = fresh
	if len(fresh) == l.limit {
		log.Warn().Str("module", "app.limiter").Str("client", client).Dur("window", l.interval).Msg("client blocked after failed attempts")
	}
}

func (l *FailureLimiter) pruneLocked(client string) []time.Time {
	windowStart := l.now().Add(-l.interval)
	attempts := l.history[client]

	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		delete(l.history, client)
		return nil
	}
	l.history[client] = fresh
	return fresh
}

// sweepLocked drops clients whose failures have all expired, at most once per
// window, so clients that never come back do not pile up.
func (l *FailureLimiter) sweepLocked() {
	now := l.now()
	if now.Sub(l.lastSweep) < l.interval {
		return
	}
	l.lastSweep = now
	for client := range l.history {
		l.pruneLocked(client)
	}
}
