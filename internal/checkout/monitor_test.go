package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/clock"
	"kassa/internal/models"
	"kassa/internal/reservation"
)

func TestMonitorExpiresAtDeadline(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	fake := clock.NewFake(testStart)
	m := newTestMachine(t, repo, nil, Options{Clock: fake})
	mo := NewMonitor(m, repo, MonitorOptions{Interval: 5 * time.Second, Clock: fake})

	finished := make(chan struct{})
	go func() {
		mo.Run(context.Background())
		close(finished)
	}()

	fake.Advance(29 * time.Minute)
	assert.NotEqual(t, StateExpired, m.State())

	fake.Advance(2 * time.Minute)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after expiry")
	}
	assert.Equal(t, StateExpired, m.State())
}

func TestMonitorPollsUntilSettled(t *testing.T) {
	view := pendingView("res-1")
	view.Status = models.StatusExternalProcessingPayment
	repo := reservation.NewInMemory()
	repo.Put(view)

	fake := clock.NewFake(testStart)
	m := newTestMachine(t, repo, nil, Options{Clock: fake})
	require.Equal(t, StateAwaitingProvider, m.State())

	polls := make(chan struct{}, 16)
	mo := NewMonitor(m, repo, MonitorOptions{
		Interval: 5 * time.Second,
		Clock:    fake,
		OnPoll:   func(time.Duration, error) { polls <- struct{}{} },
	})

	finished := make(chan struct{})
	go func() {
		mo.Run(context.Background())
		close(finished)
	}()

	fake.Advance(5 * time.Second)
	select {
	case <-polls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a status poll after one interval")
	}
	assert.Equal(t, StateAwaitingProvider, m.State())

	settled := pendingView("res-1")
	settled.Status = models.StatusComplete
	repo.Put(settled)

	fake.Advance(5 * time.Second)
	select {
	case <-polls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a second status poll")
	}

	require.Eventually(t, func() bool {
		return m.State() == StateSuccess
	}, 2*time.Second, 10*time.Millisecond)

	// One more tick observes the terminal state and stops the monitor.
	fake.Advance(5 * time.Second)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after settlement")
	}
}

func TestMonitorDoesNotPollWhileEditing(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	fake := clock.NewFake(testStart)
	m := newTestMachine(t, repo, nil, Options{Clock: fake})

	polled := 0
	mo := NewMonitor(m, repo, MonitorOptions{
		Interval: 5 * time.Second,
		Clock:    fake,
		OnPoll:   func(time.Duration, error) { polled++ },
	})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		mo.Run(ctx)
		close(finished)
	}()

	fake.Advance(20 * time.Second)
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancellation")
	}
	assert.Zero(t, polled)
}
