package chatlock

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestGuard() (*Guard, *time.Time) {
	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	g := &Guard{
		held: make(map[int64]time.Time),
		now:  func() time.Time { return current },
		stop: make(chan struct{}),
	}
	return g, &current
}

func TestDoMutualExclusion(t *testing.T) {
	g, _ := newTestGuard()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	first := make(chan error, 1)

	go func() {
		first <- g.Do(42, func() error {
			close(entered)
			<-proceed
			return nil
		})
	}()

	<-entered
	if err := g.Do(42, func() error { return nil }); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Do while held = %v, want ErrLocked", err)
	}

	close(proceed)
	if err := <-first; err != nil {
		t.Fatalf("first Do = %v, want nil", err)
	}

	if err := g.Do(42, func() error { return nil }); err != nil {
		t.Fatalf("Do after release = %v, want nil", err)
	}
}

func TestDoReleasesOnError(t *testing.T) {
	g, _ := newTestGuard()

	boom := errors.New("boom")
	if err := g.Do(7, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Do = %v, want boom", err)
	}
	if err := g.Do(7, func() error { return nil }); err != nil {
		t.Fatalf("Do after failed fn = %v, want nil", err)
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	g, _ := newTestGuard()

	func() {
		defer func() { _ = recover() }()
		_ = g.Do(7, func() error { panic("boom") })
	}()

	if err := g.Do(7, func() error { return nil }); err != nil {
		t.Fatalf("Do after panicking fn = %v, want nil", err)
	}
}

func TestExpiredHolderIsStolen(t *testing.T) {
	g, clock := newTestGuard()

	if !g.acquire(42) {
		t.Fatalf("acquire = false, want true")
	}

	*clock = clock.Add(29 * time.Second)
	if g.acquire(42) {
		t.Fatalf("acquire before hold limit = true, want false")
	}

	*clock = clock.Add(2 * time.Second)
	if err := g.Do(42, func() error { return nil }); err != nil {
		t.Fatalf("Do on expired holder = %v, want steal and run", err)
	}
}

func TestChatsAreIndependent(t *testing.T) {
	g, _ := newTestGuard()

	done := make(chan struct{})
	go func() {
		_ = g.Do(1, func() error {
			<-done
			return nil
		})
	}()

	// Wait until chat 1 holds its lock.
	for {
		g.mu.Lock()
		_, held := g.held[1]
		g.mu.Unlock()
		if held {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := g.Do(2, func() error { return nil }); err != nil {
		t.Fatalf("Do on other chat = %v, want nil", err)
	}
	close(done)
}

func TestSweepClearsOrphans(t *testing.T) {
	g, clock := newTestGuard()

	g.acquire(1)
	g.acquire(2)
	*clock = clock.Add(holdLimit + time.Second)
	g.sweep()

	g.mu.Lock()
	n := len(g.held)
	g.mu.Unlock()
	if n != 0 {
		t.Fatalf("held after sweep = %d, want 0", n)
	}
}

func TestConcurrentDoSingleWinner(t *testing.T) {
	g, _ := newTestGuard()

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	locked := 0

	start := make(chan struct{})
	hold := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := g.Do(99, func() error {
				mu.Lock()
				ran++
				mu.Unlock()
				<-hold
				return nil
			})
			if errors.Is(err, ErrLocked) {
				mu.Lock()
				locked++
				mu.Unlock()
			}
		}()
	}

	close(start)
	// Give every goroutine a chance to attempt the lock.
	for {
		mu.Lock()
		settled := ran+locked == attempts
		mu.Unlock()
		if settled {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(hold)
	wg.Wait()

	if ran != 1 {
		t.Fatalf("critical sections run = %d, want exactly 1", ran)
	}
	if locked != attempts-1 {
		t.Fatalf("locked rejections = %d, want %d", locked, attempts-1)
	}
}
