// Package chatlock provides the per-chat advisory lock around the
// payment-finalization step. The lock is non-blocking: a duplicate tap
// gets ErrLocked immediately and must be dropped, not retried.
package chatlock

import (
	"errors"
	"sync"
	"time"
)

// ErrLocked reports that another handler currently owns the chat.
var ErrLocked = errors.New("chat is locked")

const (
	// holdLimit is the hard ceiling on one holder; an older lock is
	// treated as orphaned and stolen.
	holdLimit = 30 * time.Second
	// sweepEvery clears orphaned locks that nobody tried to steal.
	sweepEvery = 60 * time.Second
)

// Guard serializes one critical section per chat id.
type Guard struct {
	mu       sync.Mutex
	held     map[int64]time.Time
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewGuard builds a guard and starts its orphan sweep.
func NewGuard() *Guard {
	g := &Guard{
		held: make(map[int64]time.Time),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Do runs fn while holding the chat's lock, or returns ErrLocked without
// waiting. The lock is released even when fn panics.
func (g *Guard) Do(chatID int64, fn func() error) error {
	if !g.acquire(chatID) {
		return ErrLocked
	}
	defer g.release(chatID)
	return fn()
}

func (g *Guard) acquire(chatID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if since, ok := g.held[chatID]; ok && now.Sub(since) < holdLimit {
		return false
	}
	g.held[chatID] = now
	return true
}

func (g *Guard) release(chatID int64) {
	g.mu.Lock()
	delete(g.held, chatID)
	g.mu.Unlock()
}

// Close stops the orphan sweep.
func (g *Guard) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Guard) sweepLoop() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, since := range g.held {
		if now.Sub(since) >= holdLimit {
			delete(g.held, id)
		}
	}
}
