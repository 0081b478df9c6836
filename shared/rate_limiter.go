package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LoginAttemptLimiter tracks failed login attempts per key (normally the
// email) and blocks further attempts once the window limit is reached.
type LoginAttemptLimiter struct {
	maxAttempts int
	window      time.Duration
	mutex       sync.Mutex
	attempts    map[string][]time.Time
}

// NewLoginAttemptLimiter creates a limiter allowing maxAttempts failures
// per key within the sliding window.
func NewLoginAttemptLimiter(maxAttempts int, window time.Duration) *LoginAttemptLimiter {
	return &LoginAttemptLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
	}
}

// Allow reports whether another attempt for key may proceed.
func (l *LoginAttemptLimiter) Allow(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	recent := l.prune(key)
	if len(recent) >= l.maxAttempts {
		logrus.WithFields(logrus.Fields{
			"component":    "LoginAttemptLimiter",
			"attempts":     len(recent),
			"max_attempts": l.maxAttempts,
			"window":       l.window,
		}).Warn("Login attempt blocked by rate limiter")
		return false
	}
	return true
}

// RecordFailure registers a failed attempt for key.
func (l *LoginAttemptLimiter) RecordFailure(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.attempts[key] = append(l.prune(key), time.Now())
}

// RecordSuccess clears the failure history for key.
func (l *LoginAttemptLimiter) RecordSuccess(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.attempts, key)
}

// prune drops attempts outside the window. Caller must hold the mutex.
func (l *LoginAttemptLimiter) prune(key string) []time.Time {
	cutoff := time.Now().Add(-l.window)
	var recent []time.Time
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(l.attempts, key)
	} else {
		l.attempts[key] = recent
	}
	return recent
}
