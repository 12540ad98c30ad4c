package application

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const loginLimiterIdleTTL = 10 * time.Minute

// LoginLimiter throttles login attempts per email address.
type LoginLimiter struct {
	mu        sync.Mutex
	entries   map[string]*loginEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastPrune time.Time
}

type loginEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perMinute attempts per email with an equal burst.
// A non-positive perMinute disables limiting.
func NewLoginLimiter(perMinute int, now func() time.Time) *LoginLimiter {
	if perMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &LoginLimiter{
		entries: make(map[string]*loginEntry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		now:     now,
	}
}

// Allow reports whether another attempt for email may proceed now.
func (l *LoginLimiter) Allow(email string) bool {
	if l == nil {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(email))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &loginEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *LoginLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < loginLimiterIdleTTL {
		return
	}
	l.lastPrune = now
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > loginLimiterIdleTTL {
			delete(l.entries, key)
		}
	}
}

// Tracked returns the number of emails currently holding limiter state.
func (l *LoginLimiter) Tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
