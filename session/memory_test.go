package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStorePutGetUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	if _, err := store.Put(ctx, "u1", "tok-1", AuthLocal, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	sess, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Token != "tok-1" || sess.AuthMode != AuthLocal {
		t.Fatalf("unexpected session: %+v", sess)
	}

	clock.Advance(59 * time.Minute)
	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("expected session still live: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}

	all, _ := store.List(ctx)
	if len(all) != 0 {
		t.Fatalf("expected lazy eviction on read, got %d entries", len(all))
	}
}

func TestMemoryStorePutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "u1", "first", AuthLocal, 0)
	store.Put(ctx, "u1", "second", AuthGoogle, 0)

	all, _ := store.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected single session per user, got %d", len(all))
	}
	if all[0].Token != "second" || all[0].AuthMode != AuthGoogle {
		t.Fatalf("unexpected replacement: %+v", all[0])
	}
	if got := all[0].ExpiresAt.Sub(all[0].CreatedAt); got != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", got)
	}
}

func TestMemoryStoreTouchKeepsExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	created, _ := store.Put(ctx, "u1", "tok", AuthLocal, time.Hour)
	clock.Advance(10 * time.Minute)

	if err := store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	sess, _ := store.Get(ctx, "u1")
	if !sess.LastActivity.Equal(clock.Now()) {
		t.Fatalf("expected lastActivity updated, got %v", sess.LastActivity)
	}
	if !sess.ExpiresAt.Equal(created.ExpiresAt) {
		t.Fatalf("touch must not move expiresAt: %v vs %v", sess.ExpiresAt, created.ExpiresAt)
	}

	if err := store.Touch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRemoveIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "u1", "tok", AuthLocal, time.Hour)

	existed, err := store.Remove(ctx, "u1")
	if err != nil || !existed {
		t.Fatalf("first remove: existed=%v err=%v", existed, err)
	}
	existed, err = store.Remove(ctx, "u1")
	if err != nil || existed {
		t.Fatalf("second remove: existed=%v err=%v", existed, err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	store.Put(ctx, "short", "a", AuthLocal, time.Minute)
	store.Put(ctx, "long", "b", AuthLocal, time.Hour)
	clock.Advance(2 * time.Minute)

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	all, _ := store.List(ctx)
	if len(all) != 1 || all[0].UserID != "long" {
		t.Fatalf("unexpected remaining sessions: %+v", all)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				store.Put(ctx, "shared", "tok", AuthLocal, time.Hour)
				store.Get(ctx, "shared")
				store.Touch(ctx, "shared")
				if j%7 == 0 {
					store.Remove(ctx, "shared")
				}
				store.Sweep(ctx)
			}
		}(i)
	}
	wg.Wait()

	all, _ := store.List(ctx)
	if len(all) > 1 {
		t.Fatalf("expected at most one session per user, got %d", len(all))
	}
}

func TestSweeperRunsAndStops(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "gone", "tok", AuthLocal, time.Nanosecond)
	time.Sleep(time.Millisecond)

	reports := make(chan int, 16)
	sw := StartSweeper(store, 5*time.Millisecond, func(removed int, err error) {
		if err == nil {
			select {
			case reports <- removed:
			default:
			}
		}
	})
	defer sw.Stop()

	select {
	case removed := <-reports:
		if removed != 1 {
			t.Fatalf("expected first sweep to remove 1 session, got %d", removed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run")
	}

	sw.Stop()
	sw.Stop()
}

func TestSessionRemaining(t *testing.T) {
	now := time.Unix(100, 0)
	s := &Session{ExpiresAt: now.Add(90 * time.Second)}
	if s.Remaining(now) != 90*time.Second {
		t.Fatalf("unexpected remaining %v", s.Remaining(now))
	}
	if s.Remaining(now.Add(time.Hour)) != 0 {
		t.Fatal("remaining must not be negative")
	}
	if !s.Live(now) || s.Live(now.Add(90*time.Second)) {
		t.Fatal("unexpected liveness")
	}
}
