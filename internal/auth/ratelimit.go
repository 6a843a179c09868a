package auth

import (
	"sync"
	"time"
)

// LoginLimiter throttles login attempts per client IP over a sliding
// window. Every allowed attempt counts, successful or not, so a burst of
// valid logins is throttled the same as a credential-stuffing run.
type LoginLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string][]time.Time
	now      func() time.Time
}

// NewLoginLimiter creates a limiter allowing limit attempts per window
// for each IP.
func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records an attempt for ip and reports whether it is within the
// limit. Attempts older than the window are dropped.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	bucket := l.attempts[ip][:0]
	for _, t := range l.attempts[ip] {
		if t.After(cutoff) {
			bucket = append(bucket, t)
		}
	}
	if len(bucket) >= l.limit {
		l.attempts[ip] = bucket
		return false
	}
	l.attempts[ip] = append(bucket, now)
	return true
}
