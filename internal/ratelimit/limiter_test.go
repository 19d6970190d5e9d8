package ratelimit

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
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

func newTestLimiter(store AttemptStore) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(store, Config{}).WithClock(clock.Now)
	return l, clock
}

func TestSixthAttemptRejected(t *testing.T) {
	l, clock := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if d.Remaining != 5-i {
			t.Errorf("attempt %d: remaining = %d, want %d", i, d.Remaining, 5-i)
		}
		clock.Advance(2 * time.Minute)
	}

	d, _ := l.Allow(ctx, "alice@example.com")
	if d.Allowed {
		t.Fatal("6th attempt within the window should be rejected")
	}
	// First attempt was 10 minutes ago.
	if d.RetryAfter != 5*time.Minute {
		t.Errorf("RetryAfter = %v, want 5m", d.RetryAfter)
	}

	// Other keys are independent.
	if d, _ := l.Allow(ctx, "bob@example.com"); !d.Allowed {
		t.Error("unrelated key should be allowed")
	}
}

func TestWindowElapses(t *testing.T) {
	l, clock := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "k")
	}
	if d, _ := l.Allow(ctx, "k"); d.Allowed {
		t.Fatal("expected rejection at the limit")
	}

	clock.Advance(15*time.Minute - time.Millisecond)
	if d, _ := l.Allow(ctx, "k"); d.Allowed {
		t.Fatal("still inside the window")
	}

	clock.Advance(time.Millisecond)
	if d, _ := l.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("expected attempts to be allowed once the window elapsed")
	}
}

func TestRejectedAttemptsNotRecorded(t *testing.T) {
	store := NewMemoryStore()
	l, clock := newTestLimiter(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "k")
	}
	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		l.Allow(ctx, "k")
	}
	got, _ := store.Get(ctx, "k")
	if len(got) != 5 {
		t.Errorf("recorded %d attempts, want 5", len(got))
	}
}

func TestSweepEvictsEmptyKeys(t *testing.T) {
	store := NewMemoryStore()
	l, clock := newTestLimiter(store)
	ctx := context.Background()

	l.Allow(ctx, "old")
	clock.Advance(10 * time.Minute)
	l.Allow(ctx, "recent")
	clock.Advance(6 * time.Minute)

	evicted, err := l.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("tracked keys = %d, want 1", store.Len())
	}
	if got, _ := store.Get(ctx, "old"); len(got) != 0 {
		t.Errorf("old key still has %d attempts", len(got))
	}
}

func TestConcurrentAttemptsSameKey(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, err := l.Allow(ctx, "k"); err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Errorf("allowed = %d, want 5", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(NewMemoryStore(), Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMemoryStorePutEmptyDeletes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, "k", []time.Time{time.Now()})
	s.Put(ctx, "k", nil)
	if s.Len() != 0 {
		t.Errorf("expected key to be deleted, %d keys remain", s.Len())
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FOLIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FOLIO_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	store := NewRedisStore(client, time.Minute)
	store.prefix = "folio:test:" + t.Name() + ":"
	t.Cleanup(func() {
		client.Del(ctx, store.key("a"), store.key("b"))
	})

	base := time.Now().Truncate(time.Microsecond)
	if err := store.Put(ctx, "a", []time.Time{base, base.Add(time.Second)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(base) {
		t.Fatalf("Get = %v", got)
	}

	store.Put(ctx, "b", []time.Time{base.Add(-time.Hour)})
	evicted, err := store.Sweep(ctx, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}

	l := New(store, Config{MaxAttempts: 2, Window: time.Minute})
	l.Allow(ctx, "b")
	l.Allow(ctx, "b")
	if d, _ := l.Allow(ctx, "b"); d.Allowed {
		t.Error("expected third attempt to be rejected")
	}
}
