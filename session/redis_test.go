package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "test")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestRedisStorePutGetRemove(t *testing.T) {
	store, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := store.Put(ctx, "u1", "tok-1", AuthLocal, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	sess, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Token != "tok-1" || sess.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if _, err := store.Put(ctx, "u1", "tok-2", AuthLocal, time.Hour); err != nil {
		t.Fatalf("replace: %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Token != "tok-2" {
		t.Fatalf("expected replaced single session, got %+v", all)
	}

	existed, err := store.Remove(ctx, "u1")
	if err != nil || !existed {
		t.Fatalf("remove: existed=%v err=%v", existed, err)
	}
	existed, err = store.Remove(ctx, "u1")
	if err != nil || existed {
		t.Fatalf("second remove: existed=%v err=%v", existed, err)
	}
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreNativeTTLAndSweep(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	store.Put(ctx, "short", "a", AuthLocal, time.Minute)
	store.Put(ctx, "long", "b", AuthGoogle, time.Hour)

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to be absent, got %v", err)
	}

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected sweep to drop 1 stale index entry, got %d", removed)
	}
	members, _ := mr.Members("test:sess-index")
	if len(members) != 1 || members[0] != "long" {
		t.Fatalf("unexpected index members: %v", members)
	}
}

func TestRedisStoreLazyEvictionOnSkew(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	store.Put(ctx, "u1", "tok", AuthLocal, time.Hour)
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale document treated as absent, got %v", err)
	}
	if mr.Exists("test:sess:u1") {
		t.Fatal("expected stale document to be evicted")
	}
}

func TestRedisStoreSweepSparesRecreatedSessions(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	// Sweep saw no document for u1, then a login recreated it.
	store.Put(ctx, "u1", "tok", AuthLocal, time.Hour)
	n, err := store.pruneIndex(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("pruneIndex on a live key: n=%d err=%v", n, err)
	}
	if ok, _ := mr.IsMember("test:sess-index", "u1"); !ok {
		t.Fatal("index entry of a recreated session was dropped")
	}

	// Sweep saw a stale document for u2, then a login replaced it.
	store.Put(ctx, "u2", "old", AuthLocal, time.Hour)
	_, seen, err := store.loadRaw(ctx, "u2")
	if err != nil {
		t.Fatalf("loadRaw: %v", err)
	}
	store.Put(ctx, "u2", "new", AuthLocal, time.Hour)
	n, err = store.dropStale(ctx, "u2", seen)
	if err != nil || n != 0 {
		t.Fatalf("dropStale on a replaced key: n=%d err=%v", n, err)
	}
	if sess, err := store.Get(ctx, "u2"); err != nil || sess.Token != "new" {
		t.Fatalf("replacement session lost: %+v %v", sess, err)
	}

	// Unchanged entries are still swept.
	mr.Del("test:sess:u1")
	if n, err := store.pruneIndex(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("pruneIndex on a missing key: n=%d err=%v", n, err)
	}
	_, seen, _ = store.loadRaw(ctx, "u2")
	if n, err := store.dropStale(ctx, "u2", seen); err != nil || n != 1 {
		t.Fatalf("dropStale on an unchanged key: n=%d err=%v", n, err)
	}
	if mr.Exists("test:sess:u2") {
		t.Fatal("unchanged stale document survived")
	}
}

func TestRedisStoreTouchKeepsTTL(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	created, _ := store.Put(ctx, "u1", "tok", AuthLocal, time.Hour)
	ttlBefore := mr.TTL("test:sess:u1")

	if err := store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if mr.TTL("test:sess:u1") != ttlBefore {
		t.Fatalf("touch changed ttl: %v -> %v", ttlBefore, mr.TTL("test:sess:u1"))
	}
	sess, _ := store.Get(ctx, "u1")
	if !sess.ExpiresAt.Equal(created.ExpiresAt) {
		t.Fatal("touch must not move expiresAt")
	}

	if err := store.Touch(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	if _, err := store.Get(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
