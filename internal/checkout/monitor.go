package checkout

import (
	"context"
	"time"

	"kassa/internal/clock"
	"kassa/internal/logger"
	"kassa/internal/reservation"
)

// Monitor owns the clock-driven part of a session: the expiry timer armed at
// validUntil and the periodic status poll while the reservation waits on an
// external payment confirmation. It runs as one goroutine per session and
// stops when the session reaches a terminal state or the context is cancelled.
type Monitor struct {
	machine  *Machine
	repo     reservation.Repository
	clk      clock.Clock
	interval time.Duration
	onPoll   func(d time.Duration, err error)
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	OnPoll   func(d time.Duration, err error)
}

func NewMonitor(machine *Machine, repo reservation.Repository, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	return &Monitor{
		machine:  machine,
		repo:     repo,
		clk:      opts.Clock,
		interval: opts.Interval,
		onPoll:   opts.OnPoll,
	}
}

// Run blocks until the session finishes or ctx is cancelled.
func (mo *Monitor) Run(ctx context.Context) {
	ticker := mo.clk.NewTicker(mo.interval)
	defer ticker.Stop()

	var expiryC <-chan time.Time
	if deadline := mo.machine.deadline(); !deadline.IsZero() {
		wait := deadline.Sub(mo.clk.Now())
		if wait < 0 {
			wait = 0
		}
		timer := mo.clk.NewTimer(wait)
		defer timer.Stop()
		expiryC = timer.C()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiryC:
			mo.machine.handleExpiry()
			return
		case <-ticker.C():
			if mo.machine.finished() {
				return
			}
			// The deadline is re-checked here as well in case the timer was
			// armed before the first view arrived.
			if deadline := mo.machine.deadline(); !deadline.IsZero() && mo.clk.Now().After(deadline) {
				mo.machine.handleExpiry()
				return
			}
			if mo.machine.shouldPoll() {
				mo.poll(ctx)
			}
		}
	}
}

func (mo *Monitor) poll(ctx context.Context) {
	start := mo.clk.Now()
	view, err := mo.repo.GetStatus(ctx, mo.machine.reservationID)
	if mo.onPoll != nil {
		mo.onPoll(mo.clk.Now().Sub(start), err)
	}
	if err != nil {
		logger.WithReservation(mo.machine.reservationID).Warn("status poll failed", "error", err)
		return
	}
	mo.machine.handleStatusResolved(view)
}

func (m *Machine) deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == nil {
		return time.Time{}
	}
	return m.view.ValidUntil
}

func (m *Machine) finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed || m.expired || m.state.Terminal()
}

// shouldPoll reports whether the session is waiting on an asynchronous
// provider resolution.
func (m *Machine) shouldPoll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAwaitingProvider {
		return true
	}
	return m.view != nil && m.view.Status.PendingExternal()
}
