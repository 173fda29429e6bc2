package throttle

import (
	"testing"
	"time"
)

func TestAllowBurstThenReject(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(Config{PerMinute: 1, Burst: 3})
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("User@Example.com") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("user@example.com ") {
		t.Fatal("expected normalized identifier to share the exhausted bucket")
	}
	if !l.Allow("other@example.com") {
		t.Fatal("expected independent bucket for a different identifier")
	}

	now = now.Add(time.Minute)
	if !l.Allow("user@example.com") {
		t.Fatal("expected a token to refill after one minute")
	}
}

func TestPruneIdleEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(Config{IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(2 * time.Minute)
	l.Allow("b")

	if removed := l.Prune(); removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", l.Len())
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	if !l.Allow("x") {
		t.Fatal("nil limiter must allow")
	}
}
