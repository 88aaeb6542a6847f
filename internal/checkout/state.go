package checkout

// State is the client-side view of a checkout session. Terminal success is
// only ever reached through the backend's confirm/status response, never from
// a provider-only signal.
type State string

const (
	StateEditing          State = "EDITING"
	StateOverview         State = "OVERVIEW"
	StateSubmitting       State = "SUBMITTING"
	StateAwaitingProvider State = "AWAITING_PROVIDER"
	StateSuccess          State = "TERMINAL_SUCCESS"
	StateCancelled        State = "TERMINAL_CANCELLED"
	StateExpired          State = "TERMINAL_EXPIRED"
	StateError            State = "TERMINAL_ERROR"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateCancelled, StateExpired, StateError:
		return true
	}
	return false
}

// guarded reports whether the state holds the submit lock and the
// navigate-away guard.
func (s State) guarded() bool {
	return s == StateSubmitting || s == StateAwaitingProvider
}

// NavigationGuard is the warn-before-navigating-away hook. It is acquired on
// entry to SUBMITTING/AWAITING_PROVIDER and released on any exit from those
// states; both calls happen in exactly one place inside the machine, so no
// error path can leak an acquisition.
type NavigationGuard interface {
	Acquire(reservationID string)
	Release(reservationID string)
}

// NopGuard is used when no embedding page is listening.
type NopGuard struct{}

func (NopGuard) Acquire(string) {}
func (NopGuard) Release(string) {}
