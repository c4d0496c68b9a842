// Package ratelimit provides the two in-process throttles the bot runs:
// a flat per-id cooldown for general interaction and a sliding-window
// quota for remote validation calls. Rejection is a boolean, never an
// error; callers decide whether to render a "please wait" or stay
// silent.
package ratelimit

import (
	"sync"
	"time"
)

// Cooldown rejects an id when its previous allowed call is younger than
// the interval. A successful Allow stamps the id.
type Cooldown struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	interval time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewCooldown builds a cooldown limiter. sweepEvery > 0 starts a
// background sweep that drops idle ids; Close stops it.
func NewCooldown(interval, sweepEvery time.Duration) *Cooldown {
	c := &Cooldown{
		last:     make(map[int64]time.Time),
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if sweepEvery > 0 {
		go c.sweepLoop(sweepEvery)
	}
	return c
}

// Allow reports whether the id may proceed and stamps it when it may.
func (c *Cooldown) Allow(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[id]; ok && now.Sub(last) < c.interval {
		return false
	}
	c.last[id] = now
	return true
}

// Close stops the background sweep.
func (c *Cooldown) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cooldown) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cooldown) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, last := range c.last {
		if now.Sub(last) >= c.interval {
			delete(c.last, id)
		}
	}
}

// Quota allows up to max calls per id inside a sliding window.
type Quota struct {
	mu       sync.Mutex
	hits     map[int64][]time.Time
	window   time.Duration
	max      int
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewQuota builds a sliding-window limiter. sweepEvery > 0 starts a
// background sweep that prunes stale timestamps; Close stops it.
func NewQuota(max int, window, sweepEvery time.Duration) *Quota {
	q := &Quota{
		hits:   make(map[int64][]time.Time),
		window: window,
		max:    max,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if sweepEvery > 0 {
		go q.sweepLoop(sweepEvery)
	}
	return q
}

// Allow prunes the id's window, rejects at capacity, and otherwise
// records the call.
func (q *Quota) Allow(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	kept := prune(q.hits[id], now, q.window)
	if len(kept) >= q.max {
		q.hits[id] = kept
		return false
	}
	q.hits[id] = append(kept, now)
	return true
}

// Remaining reports how many calls the id has left in the current
// window.
func (q *Quota) Remaining(id int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := prune(q.hits[id], q.now(), q.window)
	q.hits[id] = kept
	if left := q.max - len(kept); left > 0 {
		return left
	}
	return 0
}

// Close stops the background sweep.
func (q *Quota) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
}

func (q *Quota) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

func (q *Quota) sweep() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for id, ts := range q.hits {
		kept := prune(ts, now, q.window)
		if len(kept) == 0 {
			delete(q.hits, id)
			continue
		}
		q.hits[id] = kept
	}
}

func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := 0
	for cut < len(ts) && now.Sub(ts[cut]) >= window {
		cut++
	}
	if cut == 0 {
		return ts
	}
	kept := make([]time.Time, len(ts)-cut)
	copy(kept, ts[cut:])
	return kept
}
