package ratelimit

import (
	"testing"
	"time"
)

func testClock(start time.Time) (*time.Time, func() time.Time) {
	current := start
	return &current, func() time.Time { return current }
}

func newTestCooldown(interval time.Duration) (*Cooldown, *time.Time) {
	clock, now := testClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	c := &Cooldown{
		last:     make(map[int64]time.Time),
		interval: interval,
		now:      now,
		stop:     make(chan struct{}),
	}
	return c, clock
}

func newTestQuota(max int, window time.Duration) (*Quota, *time.Time) {
	clock, now := testClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	q := &Quota{
		hits:   make(map[int64][]time.Time),
		window: window,
		max:    max,
		now:    now,
		stop:   make(chan struct{}),
	}
	return q, clock
}

func TestCooldownInterval(t *testing.T) {
	c, clock := newTestCooldown(2 * time.Second)

	if !c.Allow(7) {
		t.Fatalf("first Allow = false, want true")
	}
	if c.Allow(7) {
		t.Fatalf("second Allow inside interval = true, want false")
	}

	*clock = clock.Add(2 * time.Second)
	if !c.Allow(7) {
		t.Fatalf("Allow after interval = false, want true")
	}
}

func TestCooldownIdsIndependent(t *testing.T) {
	c, _ := newTestCooldown(time.Minute)

	if !c.Allow(1) {
		t.Fatalf("id 1 first Allow = false")
	}
	if !c.Allow(2) {
		t.Fatalf("id 2 first Allow = false, ids must not share state")
	}
}

func TestCooldownSweepDropsIdle(t *testing.T) {
	c, clock := newTestCooldown(time.Second)

	c.Allow(1)
	c.Allow(2)
	*clock = clock.Add(5 * time.Second)
	c.sweep()

	c.mu.Lock()
	n := len(c.last)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("entries after sweep = %d, want 0", n)
	}
}

func TestQuotaWindow(t *testing.T) {
	q, clock := newTestQuota(5, 2*time.Minute)

	for i := 0; i < 5; i++ {
		if !q.Allow(9) {
			t.Fatalf("Allow #%d = false, want true", i+1)
		}
	}
	if q.Allow(9) {
		t.Fatalf("6th Allow inside window = true, want false")
	}

	*clock = clock.Add(2 * time.Minute)
	if !q.Allow(9) {
		t.Fatalf("Allow after window elapsed = false, want true")
	}
}

func TestQuotaRemaining(t *testing.T) {
	q, clock := newTestQuota(3, time.Minute)

	if got := q.Remaining(4); got != 3 {
		t.Fatalf("Remaining before calls = %d, want 3", got)
	}
	q.Allow(4)
	q.Allow(4)
	if got := q.Remaining(4); got != 1 {
		t.Fatalf("Remaining after 2 calls = %d, want 1", got)
	}
	q.Allow(4)
	if got := q.Remaining(4); got != 0 {
		t.Fatalf("Remaining at capacity = %d, want 0", got)
	}

	*clock = clock.Add(time.Minute)
	if got := q.Remaining(4); got != 3 {
		t.Fatalf("Remaining after window = %d, want 3", got)
	}
}

func TestQuotaSlidesPartially(t *testing.T) {
	q, clock := newTestQuota(2, time.Minute)

	q.Allow(5)
	*clock = clock.Add(40 * time.Second)
	q.Allow(5)
	if q.Allow(5) {
		t.Fatalf("third Allow with both hits in window = true, want false")
	}

	// First hit leaves the window, second stays.
	*clock = clock.Add(30 * time.Second)
	if !q.Allow(5) {
		t.Fatalf("Allow after oldest hit expired = false, want true")
	}
	if q.Allow(5) {
		t.Fatalf("window refilled too fast")
	}
}

func TestQuotaSweepDropsEmpty(t *testing.T) {
	q, clock := newTestQuota(2, time.Second)

	q.Allow(1)
	q.Allow(2)
	*clock = clock.Add(5 * time.Second)
	q.sweep()

	q.mu.Lock()
	n := len(q.hits)
	q.mu.Unlock()
	if n != 0 {
		t.Fatalf("ids after sweep = %d, want 0", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewCooldown(time.Second, 10*time.Millisecond)
	c.Close()
	c.Close()

	q := NewQuota(1, time.Second, 10*time.Millisecond)
	q.Close()
	q.Close()
}
