package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure.
var ErrRedisUnavailable = errors.New("throttle: redis unavailable")

// RedisWindow allows at most Max attempts per identifier in each Window.
// The window starts at the first attempt.
type RedisWindow struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

func NewRedisWindow(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisWindow {
	if prefix == "" {
		prefix = "dualauth"
	}
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{client: client, prefix: prefix, max: max, window: window}
}

func (w *RedisWindow) key(id string) string {
	return w.prefix + ":throttle:" + strings.ToLower(strings.TrimSpace(id))
}

// Check implements Gate by counting the attempt.
func (w *RedisWindow) Check(ctx context.Context, id string) (bool, error) {
	count, err := w.increment(ctx, w.key(id))
	if err != nil {
		return false, err
	}
	return count <= int64(w.max), nil
}

// Attempts returns the count in the current window. Unknown identifiers
// report zero.
func (w *RedisWindow) Attempts(ctx context.Context, id string) (int, error) {
	count, err := w.client.Get(ctx, w.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the window for id.
func (w *RedisWindow) Reset(ctx context.Context, id string) error {
	if err := w.client.Del(ctx, w.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *RedisWindow) increment(ctx context.Context, key string) (int64, error) {
	count, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// the TTL is set only on the first hit so the window does not slide
	if count == 1 {
		if err := w.client.Expire(ctx, key, w.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
