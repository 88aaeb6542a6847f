package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kassa/internal/clock"
	kerrors "kassa/internal/errors"
	"kassa/internal/logger"
	"kassa/internal/models"
	"kassa/internal/payment"
	"kassa/internal/reservation"
)

// Transition describes one state change, as seen by hooks.
type Transition struct {
	ReservationID string
	From          State
	To            State
	Status        models.ReservationStatus
	Error         string
	View          *models.ReservationView
}

// Hooks receive machine events. They are invoked with the machine lock held
// and must not call back into the machine.
type Hooks struct {
	OnTransition func(t Transition)
	OnAttempt    func(e models.PaymentOutcomeEvent)
}

// Options configures a Machine.
type Options struct {
	Guard    NavigationGuard
	Hooks    Hooks
	Clock    clock.Clock
	Language string
}

// ConfirmOutcome is the result of one Confirm invocation.
type ConfirmOutcome struct {
	State            State
	RedirectURL      string
	Reason           string
	ValidationErrors []models.ValidationError
}

// Machine drives a single reservation through the checkout lifecycle. All
// mutable session state lives behind one mutex; the reservation view is only
// ever replaced wholesale after a mutating call succeeds. Network calls are
// made outside the lock, and their results are discarded when the session
// expired, closed, or moved to a newer attempt in the meantime.
type Machine struct {
	mu        sync.Mutex
	repo      reservation.Repository
	providers payment.Factory
	clk       clock.Clock
	guard     NavigationGuard
	hooks     Hooks
	lang      string

	reservationID string
	view          *models.ReservationView
	state         State
	selection     *Selection
	redirectURL   string

	pendingWarnings []models.Warning
	pendingForm     *models.BookingFormRequest
	fieldErrors     []models.ValidationError
	globalErrors    []string

	expired       bool
	closed        bool
	attemptGen    int
	attemptCancel context.CancelFunc
}

// NewMachine builds a machine for one reservation. Load must be called before
// any other operation.
func NewMachine(repo reservation.Repository, providers payment.Factory, reservationID string, opts Options) *Machine {
	if opts.Guard == nil {
		opts.Guard = NopGuard{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	return &Machine{
		repo:          repo,
		providers:     providers,
		clk:           opts.Clock,
		guard:         opts.Guard,
		hooks:         opts.Hooks,
		lang:          opts.Language,
		reservationID: reservationID,
		state:         StateEditing,
	}
}

// setStateLocked is the only place a transition happens. The navigation guard
// is acquired and released here, so every exit path from a guarded state
// releases it exactly once.
func (m *Machine) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to

	if to.guarded() && !from.guarded() {
		m.guard.Acquire(m.reservationID)
	}
	if !to.guarded() && from.guarded() {
		m.guard.Release(m.reservationID)
	}
	if to.Terminal() && m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}

	if m.hooks.OnTransition != nil {
		var status models.ReservationStatus
		if m.view != nil {
			status = m.view.Status
		}
		var errMsg string
		if len(m.globalErrors) > 0 {
			errMsg = m.globalErrors[0]
		}
		m.hooks.OnTransition(Transition{
			ReservationID: m.reservationID,
			From:          from,
			To:            to,
			Status:        status,
			Error:         errMsg,
			View:          m.view,
		})
	}
}

// staleLocked reports whether a result obtained under the given attempt
// generation must be discarded. The expiry latch always wins over a pending
// provider outcome.
func (m *Machine) staleLocked(gen int) bool {
	return m.closed || m.expired || gen != m.attemptGen || m.state.Terminal()
}

func (m *Machine) expireLocked() {
	if m.expired || m.closed || m.state.Terminal() {
		return
	}
	m.expired = true
	m.setStateLocked(StateExpired)
}

// narrowTokenMethods enforces the token invariant: a reservation with an
// acquired token exposes exactly the method whose provider matches the token.
func narrowTokenMethods(view *models.ReservationView) {
	if !view.TokenAcquired {
		return
	}
	narrowed := make(map[models.PaymentMethod]models.PaymentMethodDetails, 1)
	for method, details := range view.ActivePaymentMethods {
		if details.Proxy == view.PaymentProxy {
			narrowed[method] = details
		}
	}
	if len(narrowed) > 0 {
		view.ActivePaymentMethods = narrowed
	}
}

// applyViewLocked replaces the reservation view wholesale and derives the
// machine state from the backend status.
func (m *Machine) applyViewLocked(view *models.ReservationView) {
	narrowTokenMethods(view)
	m.view = view

	if m.expired {
		return
	}
	if view.Expired(m.clk.Now()) {
		m.expireLocked()
		return
	}

	switch view.Status {
	case models.StatusPending:
		switch {
		case view.TokenAcquired:
			// Payment already started elsewhere: skip straight to the overview.
			m.selection = rebuildSelection(view, m.selection)
			m.setStateLocked(StateOverview)
		case m.state == StateOverview || m.state.guarded():
			m.selection = rebuildSelection(view, m.selection)
			m.setStateLocked(StateOverview)
		}
		// StateEditing stays on the booking step.
	case models.StatusInPayment, models.StatusExternalProcessingPayment, models.StatusWaitingExternalConfirmation:
		m.setStateLocked(StateAwaitingProvider)
	case models.StatusOfflinePayment, models.StatusDeferredOfflinePayment, models.StatusFinalizing, models.StatusComplete:
		m.setStateLocked(StateSuccess)
	case models.StatusCancelled, models.StatusCreditNoteIssued:
		m.setStateLocked(StateCancelled)
	case models.StatusStuck:
		m.setStateLocked(StateError)
	}
}

// Load fetches the reservation and positions the machine.
func (m *Machine) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return kerrors.ErrSessionClosed
	}
	m.mu.Unlock()

	view, err := m.repo.Fetch(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return kerrors.ErrSessionClosed
	}
	if err != nil {
		return err
	}
	m.applyViewLocked(view)
	return nil
}

// SubmitBookingForm runs validate-to-overview. Validation errors and
// unacknowledged warnings keep the machine on the booking step; on success the
// view is re-fetched and the machine enters the overview with a selection
// rebuilt from the fresh view.
func (m *Machine) SubmitBookingForm(ctx context.Context, form *models.BookingFormRequest) (*models.ValidationResult, error) {
	m.mu.Lock()
	if err := m.editableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.pendingWarnings = nil
	m.pendingForm = nil
	m.mu.Unlock()

	result, err := m.repo.ValidateToOverview(ctx, m.reservationID, form, m.lang, form.IgnoreWarnings)

	m.mu.Lock()
	if m.closed || m.expired || m.state.Terminal() {
		m.mu.Unlock()
		return nil, kerrors.ErrReservationExpired
	}
	if err != nil {
		m.globalErrors = []string{kerrors.ErrPaymentProcessing.Error()}
		m.mu.Unlock()
		return nil, err
	}

	m.fieldErrors, m.globalErrors = m.splitErrorsLocked(form, result.ValidationErrors)

	if len(result.ValidationErrors) > 0 {
		m.setStateLocked(StateEditing)
		m.mu.Unlock()
		return result, nil
	}

	if len(result.Warnings) > 0 {
		if form.IgnoreWarnings {
			// The backend re-raised warnings we asked it to ignore; surface
			// them as a failure instead of looping the acknowledge dialog.
			m.globalErrors = append(m.globalErrors, "validation warnings could not be acknowledged")
			m.setStateLocked(StateEditing)
			m.mu.Unlock()
			result.Success = false
			return result, nil
		}
		formCopy := *form
		m.pendingForm = &formCopy
		m.pendingWarnings = result.Warnings
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()

	view, err := m.repo.Fetch(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.expired || m.state.Terminal() {
		return nil, kerrors.ErrReservationExpired
	}
	if err != nil {
		m.globalErrors = []string{kerrors.ErrPaymentProcessing.Error()}
		return nil, err
	}
	m.applyViewLocked(view)
	if m.state == StateEditing {
		m.selection = rebuildSelection(view, m.selection)
		m.setStateLocked(StateOverview)
	}
	return result, nil
}

// AcknowledgeWarnings re-issues the pending validate call with the identical
// payload plus the ignore flag. Revalidation is retried, never skipped.
func (m *Machine) AcknowledgeWarnings(ctx context.Context) (*models.ValidationResult, error) {
	m.mu.Lock()
	if m.pendingForm == nil {
		m.mu.Unlock()
		return nil, kerrors.ErrNoPendingWarnings
	}
	form := *m.pendingForm
	form.IgnoreWarnings = true
	m.mu.Unlock()

	return m.SubmitBookingForm(ctx, &form)
}

// RejectWarnings drops the pending warnings without any network call; the
// machine stays on the booking step.
func (m *Machine) RejectWarnings() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingWarnings == nil {
		return kerrors.ErrNoPendingWarnings
	}
	m.pendingWarnings = nil
	m.pendingForm = nil
	return nil
}

// Edit returns from the overview to the booking step. Refused once a payment
// token has been acquired.
func (m *Machine) Edit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOverview {
		return kerrors.ErrNotEditable
	}
	if m.view != nil && m.view.TokenAcquired {
		return kerrors.ErrNotEditable
	}
	m.setStateLocked(StateEditing)
	return nil
}

func (m *Machine) editableLocked() error {
	switch {
	case m.closed:
		return kerrors.ErrSessionClosed
	case m.expired || m.state == StateExpired:
		return kerrors.ErrReservationExpired
	case m.state.guarded():
		return kerrors.ErrConfirmInFlight
	case m.state.Terminal():
		return kerrors.ErrNotEditable
	case m.view != nil && m.view.TokenAcquired:
		return kerrors.ErrNotEditable
	}
	return nil
}

// splitErrorsLocked keeps errors that map to a submitted field and escalates
// the rest to the global list.
func (m *Machine) splitErrorsLocked(form *models.BookingFormRequest, errs []models.ValidationError) ([]models.ValidationError, []string) {
	known := map[string]bool{
		"contact.first_name": true,
		"contact.last_name":  true,
		"contact.email":      true,
	}
	if form.Billing != nil {
		for _, f := range []string{"billing.company", "billing.address_line_1", "billing.zip_code", "billing.city", "billing.country", "billing.tax_id"} {
			known[f] = true
		}
	}
	for _, ta := range form.TicketAssignments {
		prefix := "tickets." + ta.TicketID + "."
		known[prefix+"first_name"] = true
		known[prefix+"last_name"] = true
		known[prefix+"email"] = true
		for field := range ta.AdditionalFields {
			known[prefix+field] = true
		}
	}

	var fields []models.ValidationError
	var global []string
	for _, e := range errs {
		if e.Field != "" && known[e.Field] {
			fields = append(fields, e)
		} else {
			global = append(global, e.Message)
		}
	}
	return fields, global
}

// Confirm runs one payment attempt. Only one confirm may be in flight per
// reservation; the submit lock is the SUBMITTING state itself.
func (m *Machine) Confirm(ctx context.Context, req *models.ConfirmRequest) (*ConfirmOutcome, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, kerrors.ErrSessionClosed
	}
	if m.state.guarded() {
		m.mu.Unlock()
		return nil, kerrors.ErrConfirmInFlight
	}
	if m.expired || m.state == StateExpired {
		m.mu.Unlock()
		return nil, kerrors.ErrReservationExpired
	}
	if m.state != StateOverview {
		m.mu.Unlock()
		return nil, kerrors.ErrNotReadyToConfirm
	}
	if m.pendingWarnings != nil {
		m.mu.Unlock()
		return nil, kerrors.ErrWarningsPending
	}

	view := m.view
	method := req.Method
	if view.OrderSummary.Free {
		// Free reservations bypass method selection with the synthesized
		// NONE provider but still pass through SUBMITTING.
		method = models.MethodNone
	}
	if method == "" && m.selection != nil {
		method = m.selection.Method
	}
	if method == "" {
		m.mu.Unlock()
		return nil, kerrors.ErrNoPaymentMethod
	}
	if method != models.MethodNone {
		if _, ok := view.ActivePaymentMethods[method]; !ok {
			m.mu.Unlock()
			return nil, kerrors.ErrMethodUnavailable
		}
	}

	preAccepted := m.selection != nil && m.selection.TermsAccepted && m.selection.PrivacyAccepted
	if !preAccepted && (!req.TermsAccepted || !req.PrivacyAccepted) {
		m.mu.Unlock()
		return nil, kerrors.ErrAcceptanceRequired
	}

	provider, err := m.providers(method, view)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	if m.selection == nil {
		m.selection = &Selection{}
	}
	m.selection.Method = method
	m.selection.TermsAccepted = true
	m.selection.PrivacyAccepted = true
	m.selection.CaptchaResponse = req.CaptchaResponse
	m.fieldErrors = nil
	m.globalErrors = nil
	m.redirectURL = ""

	m.attemptGen++
	gen := m.attemptGen
	attemptID := uuid.New().String()
	attemptCtx, cancelAttempt := context.WithCancel(context.Background())
	m.attemptCancel = cancelAttempt
	m.setStateLocked(StateSubmitting)
	m.mu.Unlock()

	go m.drainNotifications(attemptCtx, gen, provider.Notifications())

	outcome, payErr := provider.Pay(ctx)

	m.mu.Lock()
	if m.staleLocked(gen) {
		st := m.state
		m.mu.Unlock()
		cancelAttempt()
		return &ConfirmOutcome{State: st}, nil
	}

	if payErr != nil {
		m.recordAttemptLocked(attemptID, method, false, kerrors.ErrPaymentProcessing.Error())
		m.globalErrors = []string{kerrors.ErrPaymentProcessing.Error()}
		m.setStateLocked(StateOverview)
		m.mu.Unlock()
		cancelAttempt()
		return &ConfirmOutcome{State: StateOverview, Reason: kerrors.ErrPaymentProcessing.Error()}, nil
	}

	if !outcome.Success {
		m.recordAttemptLocked(attemptID, method, false, outcome.Reason)
		if outcome.ReservationChanged {
			// The local view is stale; reload it wholesale instead of
			// retrying blindly.
			m.mu.Unlock()
			return m.reloadAfterAttempt(ctx, gen, cancelAttempt, outcome.Reason)
		}
		if outcome.Reason != "" {
			m.globalErrors = []string{outcome.Reason}
		}
		m.setStateLocked(StateOverview)
		m.mu.Unlock()
		cancelAttempt()
		return &ConfirmOutcome{State: StateOverview, Reason: outcome.Reason}, nil
	}

	confirmReq := *req
	confirmReq.Method = method
	confirmReq.GatewayToken = outcome.GatewayToken
	m.mu.Unlock()

	result, confirmErr := m.repo.Confirm(ctx, m.reservationID, &confirmReq, m.lang)

	m.mu.Lock()
	if m.staleLocked(gen) {
		st := m.state
		m.mu.Unlock()
		cancelAttempt()
		return &ConfirmOutcome{State: st}, nil
	}

	if confirmErr != nil {
		m.recordAttemptLocked(attemptID, method, false, kerrors.ErrPaymentProcessing.Error())
		m.globalErrors = []string{kerrors.ErrPaymentProcessing.Error()}
		m.setStateLocked(StateOverview)
		m.mu.Unlock()
		cancelAttempt()
		return &ConfirmOutcome{State: StateOverview, Reason: kerrors.ErrPaymentProcessing.Error()}, nil
	}

	if !result.Success {
		m.recordAttemptLocked(attemptID, method, false, "confirm rejected")
		m.fieldErrors, m.globalErrors = m.splitErrorsLocked(&models.BookingFormRequest{}, result.ValidationErrors)
		m.mu.Unlock()
		out, err := m.reloadAfterAttempt(ctx, gen, cancelAttempt, "confirm rejected")
		if out != nil {
			out.ValidationErrors = result.ValidationErrors
		}
		return out, err
	}

	if result.Redirect && result.RedirectURL != "" {
		// Settlement continues at the gateway; the session hands the URL to
		// the caller and waits for the asynchronous outcome.
		m.recordAttemptLocked(attemptID, method, true, "")
		m.redirectURL = result.RedirectURL
		m.setStateLocked(StateAwaitingProvider)
		m.mu.Unlock()
		return &ConfirmOutcome{State: StateAwaitingProvider, RedirectURL: result.RedirectURL}, nil
	}

	m.recordAttemptLocked(attemptID, method, true, "")
	m.mu.Unlock()

	// Terminal success is declared from the backend response alone, so fetch
	// the final view before transitioning.
	view2, statusErr := m.repo.GetStatus(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer cancelAttempt()
	if m.staleLocked(gen) {
		return &ConfirmOutcome{State: m.state}, nil
	}
	if statusErr == nil && view2 != nil {
		narrowTokenMethods(view2)
		m.view = view2
	}
	m.setStateLocked(StateSuccess)
	return &ConfirmOutcome{State: StateSuccess}, nil
}

// reloadAfterAttempt re-fetches the view after a failed attempt and lets the
// backend status dictate where the machine lands.
func (m *Machine) reloadAfterAttempt(ctx context.Context, gen int, cancelAttempt context.CancelFunc, reason string) (*ConfirmOutcome, error) {
	view, err := m.repo.Fetch(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer cancelAttempt()
	if m.staleLocked(gen) {
		return &ConfirmOutcome{State: m.state}, nil
	}
	if err != nil {
		m.globalErrors = []string{kerrors.ErrPaymentProcessing.Error()}
		m.setStateLocked(StateOverview)
		return &ConfirmOutcome{State: StateOverview, Reason: reason}, nil
	}
	if reason != "" {
		m.globalErrors = append(m.globalErrors, reason)
	}
	m.applyViewLocked(view)
	if m.state.guarded() {
		m.selection = rebuildSelection(view, m.selection)
		m.setStateLocked(StateOverview)
	}
	return &ConfirmOutcome{State: m.state, Reason: reason}, nil
}

func (m *Machine) recordAttemptLocked(attemptID string, method models.PaymentMethod, success bool, reason string) {
	if m.hooks.OnAttempt == nil {
		return
	}
	m.hooks.OnAttempt(models.PaymentOutcomeEvent{
		AttemptID:     attemptID,
		ReservationID: m.reservationID,
		Method:        method,
		Success:       success,
		Reason:        reason,
		Timestamp:     m.clk.Now(),
	})
}

// drainNotifications consumes provider status notifications for the lifetime
// of one attempt. Notifications arriving after the machine left the guarded
// states, or belonging to an older attempt, are dropped.
func (m *Machine) drainNotifications(ctx context.Context, gen int, ch <-chan models.StatusNotification) {
	if ch == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			m.mu.Lock()
			if !m.staleLocked(gen) && m.state.guarded() {
				logger.WithReservation(m.reservationID).Info("payment status notification",
					"status", n.Status, "message", n.Message)
			}
			m.mu.Unlock()
		}
	}
}

// Cancel requests explicit cancellation. The backend may refuse (for example
// when checked-in tickets exist); the refusal is surfaced, not overridden.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return kerrors.ErrSessionClosed
	}
	if m.state.guarded() {
		m.mu.Unlock()
		return kerrors.ErrConfirmInFlight
	}
	if m.state.Terminal() {
		m.mu.Unlock()
		if m.state == StateCancelled {
			return nil
		}
		return kerrors.ErrNotEditable
	}
	m.mu.Unlock()

	err := m.repo.Cancel(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state.Terminal() {
		return nil
	}
	if err != nil {
		m.globalErrors = []string{err.Error()}
		return err
	}
	m.setStateLocked(StateCancelled)
	return nil
}

// ApplyCode applies a promotional or subscription code and reloads the view,
// since the backend recomputes pricing on every mutation.
func (m *Machine) ApplyCode(ctx context.Context, code, email string) (*models.ValidationResult, error) {
	m.mu.Lock()
	if err := m.codeEditableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	result, err := m.repo.ApplyCode(ctx, m.reservationID, code, email)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, nil
	}
	return result, m.refresh(ctx)
}

// RemoveCode removes a previously applied code and reloads the view.
func (m *Machine) RemoveCode(ctx context.Context) error {
	m.mu.Lock()
	if err := m.codeEditableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.repo.RemoveCode(ctx, m.reservationID); err != nil {
		return err
	}
	return m.refresh(ctx)
}

func (m *Machine) codeEditableLocked() error {
	switch {
	case m.closed:
		return kerrors.ErrSessionClosed
	case m.expired || m.state == StateExpired:
		return kerrors.ErrReservationExpired
	case m.state.guarded():
		return kerrors.ErrConfirmInFlight
	case m.state.Terminal():
		return kerrors.ErrNotEditable
	}
	return nil
}

// ClearToken discards an acquired gateway token and reopens the editing phase.
func (m *Machine) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	if err := m.codeEditableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.repo.ClearToken(ctx, m.reservationID); err != nil {
		return err
	}
	if err := m.refresh(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Terminal() {
		m.setStateLocked(StateEditing)
	}
	return nil
}

// refresh replaces the view wholesale from the backend.
func (m *Machine) refresh(ctx context.Context) error {
	view, err := m.repo.Fetch(ctx, m.reservationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state.Terminal() {
		return nil
	}
	if err != nil {
		return err
	}
	m.applyViewLocked(view)
	if m.state == StateOverview {
		m.selection = rebuildSelection(view, m.selection)
	}
	return nil
}

// ResolveStatus fetches the backend status and applies it. Used when an
// out-of-band signal (gateway webhook, manual re-check) suggests the
// reservation settled.
func (m *Machine) ResolveStatus(ctx context.Context) error {
	view, err := m.repo.GetStatus(ctx, m.reservationID)
	if err != nil {
		return err
	}
	m.handleStatusResolved(view)
	return nil
}

// handleExpiry is called by the monitor when validUntil passes. The latch
// makes the transition fire exactly once.
func (m *Machine) handleExpiry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
}

// handleStatusResolved is called by the monitor with a freshly polled view.
func (m *Machine) handleStatusResolved(view *models.ReservationView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.expired || m.state.Terminal() {
		return
	}
	m.applyViewLocked(view)
}

// Close tears the session down. Any in-flight attempt result will be
// discarded, and the guard is released if held.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.state.guarded() {
		m.guard.Release(m.reservationID)
	}
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}
	m.closed = true
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns a copy of the current reservation view, or nil before Load.
func (m *Machine) View() *models.ReservationView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == nil {
		return nil
	}
	copied := *m.view
	return &copied
}

// Selection returns a copy of the current overview selection.
func (m *Machine) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selection == nil {
		return Selection{}
	}
	return *m.selection
}

// Remaining returns the time left until the reservation deadline.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view == nil || m.view.ValidUntil.IsZero() {
		return 0
	}
	remaining := m.view.ValidUntil.Sub(m.clk.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Feedback returns the pending warnings plus field and global errors.
func (m *Machine) Feedback() ([]models.Warning, []models.ValidationError, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingWarnings, m.fieldErrors, m.globalErrors
}

// RedirectURL returns the gateway redirect target of the latest attempt.
func (m *Machine) RedirectURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redirectURL
}
