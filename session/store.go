package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL applies when Put is called with a non-positive ttl.
const DefaultTTL = time.Hour

// ErrNotFound is returned when no live session exists for a user.
var ErrNotFound = errors.New("session not found")

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store holds at most one session per user id. Put replaces any prior entry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the live session for userID, evicting a stale one.
	Get(ctx context.Context, userID string) (*Session, error)
	// Put inserts or replaces the session for userID.
	Put(ctx context.Context, userID, token string, mode AuthMode, ttl time.Duration) (*Session, error)
	// Remove deletes the session and reports whether one existed.
	Remove(ctx context.Context, userID string) (bool, error)
	// Touch refreshes LastActivity without moving ExpiresAt.
	Touch(ctx context.Context, userID string) error
	// List returns every stored entry, stale ones included.
	List(ctx context.Context) ([]Session, error)
	// Sweep evicts every expired entry and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
