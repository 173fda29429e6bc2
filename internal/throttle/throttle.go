// Package throttle slows down repeated login attempts for the same account.
//
// [Limiter] keeps an in-process token bucket per identifier. [RedisWindow]
// keeps a fixed-window counter in Redis so that every instance sharing the
// session store also shares the budget.
package throttle

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate is consulted before credentials are checked. An error means the
// budget could not be read; callers decide whether to fail open.
type Gate interface {
	Check(ctx context.Context, key string) (bool, error)
}

// Config tunes the per-identifier bucket.
type Config struct {
	PerMinute int
	Burst     int
	IdleTTL   time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one rate.Limiter per normalized identifier.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow consumes one token for key. A nil Limiter always allows.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.ToLower(strings.TrimSpace(key))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.cfg.PerMinute)), l.cfg.Burst),
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Check implements Gate.
func (l *Limiter) Check(_ context.Context, key string) (bool, error) {
	return l.Allow(key), nil
}

// Prune drops buckets idle for longer than IdleTTL and returns how many went.
func (l *Limiter) Prune() int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked identifiers.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
