package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Timers and tickers fire when
// Advance moves the fake time past their deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	mu       sync.Mutex
	ch       chan time.Time
	at       time.Time
	interval time.Duration // zero for timers
	stopped  bool
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward and fires every due timer and ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)

	for _, w := range f.waiters {
		w.mu.Lock()
		for !w.stopped && !w.at.After(f.now) {
			select {
			case w.ch <- w.at:
			default:
			}
			if w.interval <= 0 {
				w.stopped = true
				break
			}
			w.at = w.at.Add(w.interval)
		}
		w.mu.Unlock()
	}
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{ch: make(chan time.Time, 1), at: f.now.Add(d)}
	f.waiters = append(f.waiters, w)
	return w
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{ch: make(chan time.Time, 1), at: f.now.Add(d), interval: d}
	f.waiters = append(f.waiters, w)
	return fakeTicker{w}
}

// fakeTicker adapts fakeWaiter's Stop() bool to the Ticker interface's Stop().
type fakeTicker struct {
	*fakeWaiter
}

func (t fakeTicker) Stop() { t.fakeWaiter.Stop() }

func (w *fakeWaiter) C() <-chan time.Time { return w.ch }

func (w *fakeWaiter) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	was := !w.stopped
	w.stopped = true
	return was
}
