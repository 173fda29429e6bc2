package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const removeSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

// The sweep scripts act only if the key is still the one Sweep observed, so
// a Put racing the sweep keeps both its document and its index entry.
const pruneIndexScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return redis.call("SREM", KEYS[2], ARGV[1])
end
return 0
`

const dropStaleScript = `
if redis.call("GET", KEYS[1]) == ARGV[2] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], ARGV[1])
  return 1
end
return 0
`

var (
	removeSessionLua = redis.NewScript(removeSessionScript)
	pruneIndexLua    = redis.NewScript(pruneIndexScript)
	dropStaleLua     = redis.NewScript(dropStaleScript)
)

// RedisStore keeps one JSON document per user under a native TTL, plus an
// index set of user ids so List and Sweep need no keyspace scan.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "dualauth"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":sess:" + userID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":sess-index"
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sess.Live(s.now()) {
		if _, err := s.Remove(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) load(ctx context.Context, userID string) (*Session, error) {
	sess, _, err := s.loadRaw(ctx, userID)
	return sess, err
}

func (s *RedisStore) loadRaw(ctx context.Context, userID string) (*Session, []byte, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, data, nil
}

func (s *RedisStore) Put(ctx context.Context, userID, token string, mode AuthMode, ttl time.Duration) (*Session, error) {
	ttl = normalizeTTL(ttl)
	sess := newSession(userID, token, mode, ttl, s.now())

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(userID), data, ttl)
		pipe.SAdd(ctx, s.indexKey(), userID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &sess, nil
}

func (s *RedisStore) Remove(ctx context.Context, userID string) (bool, error) {
	existed, err := removeSessionLua.Run(ctx, s.redis, []string{s.key(userID), s.indexKey()}, userID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return existed == 1, nil
}

func (s *RedisStore) Touch(ctx context.Context, userID string) error {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.LastActivity = s.now()

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	// XX so a concurrent Remove is not undone.
	err = s.redis.SetArgs(ctx, s.key(userID), data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Session, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Session, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue
		}
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Sweep drops index entries whose key Redis already expired, and deletes
// documents that are past ExpiresAt but still present (clock skew).
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	removed := 0
	for _, id := range ids {
		sess, raw, err := s.loadRaw(ctx, id)
		var n int64
		switch {
		case errors.Is(err, ErrNotFound):
			n, err = s.pruneIndex(ctx, id)
		case err != nil:
			return removed, err
		case !sess.Live(now):
			n, err = s.dropStale(ctx, id, raw)
		}
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// pruneIndex removes id from the index unless its document exists again.
func (s *RedisStore) pruneIndex(ctx context.Context, id string) (int64, error) {
	n, err := pruneIndexLua.Run(ctx, s.redis, []string{s.key(id), s.indexKey()}, id).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// dropStale deletes id only while its document still equals seen.
func (s *RedisStore) dropStale(ctx context.Context, id string, seen []byte) (int64, error) {
	n, err := dropStaleLua.Run(ctx, s.redis, []string{s.key(id), s.indexKey()}, id, seen).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
