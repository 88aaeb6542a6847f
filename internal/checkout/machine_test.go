package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/clock"
	kerrors "kassa/internal/errors"
	"kassa/internal/models"
	"kassa/internal/payment"
	"kassa/internal/reservation"
)

var testStart = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func pendingView(id string) *models.ReservationView {
	return &models.ReservationView{
		ID:         id,
		Status:     models.StatusPending,
		ValidUntil: testStart.Add(30 * time.Minute),
		OrderSummary: models.OrderSummary{
			Lines:      []models.SummaryLine{{Name: "Conference ticket", Quantity: 1, PriceCents: 5000}},
			TotalCents: 5000,
			Currency:   "CHF",
		},
		ActivePaymentMethods: map[models.PaymentMethod]models.PaymentMethodDetails{
			models.MethodCreditCard:   {Proxy: models.ProxyGateway},
			models.MethodBankTransfer: {Proxy: models.ProxyOffline},
		},
		PurchaseContext: models.PurchaseContext{Type: "event", Identifier: "devdays", Title: "DevDays"},
	}
}

func bookingForm() *models.BookingFormRequest {
	return &models.BookingFormRequest{
		Contact: models.ContactInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}
}

type stubProvider struct {
	method  models.PaymentMethod
	outcome models.PaymentOutcome
	err     error
	block   chan struct{}
	started chan struct{}
	notifs  chan models.StatusNotification
}

func newStubProvider(method models.PaymentMethod, outcome models.PaymentOutcome) *stubProvider {
	p := &stubProvider{method: method, outcome: outcome, notifs: make(chan models.StatusNotification)}
	close(p.notifs)
	return p
}

func (p *stubProvider) Method() models.PaymentMethod { return p.method }
func (p *stubProvider) Deferred() bool               { return false }

func (p *stubProvider) Notifications() <-chan models.StatusNotification { return p.notifs }

func (p *stubProvider) Pay(ctx context.Context) (models.PaymentOutcome, error) {
	if p.started != nil {
		close(p.started)
	}
	if p.block != nil {
		<-p.block
	}
	return p.outcome, p.err
}

type confirmAttempt struct {
	out *ConfirmOutcome
	err error
}

func fixedFactory(p payment.Provider) payment.Factory {
	return func(models.PaymentMethod, *models.ReservationView) (payment.Provider, error) {
		return p, nil
	}
}

type recordingGuard struct {
	mu       sync.Mutex
	acquires int
	releases int
}

func (g *recordingGuard) Acquire(string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquires++
}

func (g *recordingGuard) Release(string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases++
}

func (g *recordingGuard) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.acquires, g.releases
}

func newTestMachine(t *testing.T, repo reservation.Repository, factory payment.Factory, opts Options) *Machine {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clock.NewFake(testStart)
	}
	m := NewMachine(repo, factory, "res-1", opts)
	require.NoError(t, m.Load(context.Background()))
	return m
}

func TestLoadStartsOnBookingStep(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	assert.Equal(t, StateEditing, m.State())
	assert.Equal(t, models.StatusPending, m.View().Status)
}

func TestSubmitBookingFormMovesToOverview(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	result, err := m.SubmitBookingForm(context.Background(), bookingForm())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StateOverview, m.State())

	// Two methods are offered, so nothing is preselected.
	assert.Empty(t, m.Selection().Method)
}

func TestValidationErrorsStayOnBookingStep(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))
	repo.ValidateFn = func(string, *models.BookingFormRequest, bool) (*models.ValidationResult, error) {
		return &models.ValidationResult{
			Success: false,
			ValidationErrors: []models.ValidationError{
				{Field: "contact.email", Code: "invalid", Message: "invalid email"},
				{Field: "reservation", Code: "sold_out", Message: "category sold out"},
			},
		}, nil
	}

	m := newTestMachine(t, repo, nil, Options{})
	_, err := m.SubmitBookingForm(context.Background(), bookingForm())
	require.NoError(t, err)
	assert.Equal(t, StateEditing, m.State())

	_, fieldErrs, globalErrs := m.Feedback()
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "contact.email", fieldErrs[0].Field)
	require.Len(t, globalErrs, 1)
	assert.Equal(t, "category sold out", globalErrs[0])
}

func TestAcknowledgeWarningsResendsIdenticalPayload(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))
	repo.ValidateFn = func(_ string, _ *models.BookingFormRequest, ignoreWarnings bool) (*models.ValidationResult, error) {
		if !ignoreWarnings {
			return &models.ValidationResult{
				Success:  false,
				Warnings: []models.Warning{{Code: "duplicate_attendee", Message: "attendee appears twice"}},
			}, nil
		}
		return &models.ValidationResult{Success: true}, nil
	}

	m := newTestMachine(t, repo, nil, Options{})
	form := bookingForm()
	result, err := m.SubmitBookingForm(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, StateEditing, m.State())

	_, err = m.AcknowledgeWarnings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateOverview, m.State())

	require.Len(t, repo.ValidateCalls, 2)
	assert.False(t, repo.ValidateCalls[0].IgnoreWarnings)
	assert.True(t, repo.ValidateCalls[1].IgnoreWarnings)
	assert.Equal(t, form.Contact, repo.ValidateCalls[1].Form.Contact)
	assert.Equal(t, form.TicketAssignments, repo.ValidateCalls[1].Form.TicketAssignments)
}

func TestRejectWarningsMakesNoNetworkCall(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))
	repo.ValidateFn = func(string, *models.BookingFormRequest, bool) (*models.ValidationResult, error) {
		return &models.ValidationResult{
			Success:  false,
			Warnings: []models.Warning{{Code: "duplicate_attendee", Message: "attendee appears twice"}},
		}, nil
	}

	m := newTestMachine(t, repo, nil, Options{})
	_, err := m.SubmitBookingForm(context.Background(), bookingForm())
	require.NoError(t, err)

	require.NoError(t, m.RejectWarnings())
	assert.Equal(t, StateEditing, m.State())
	assert.Len(t, repo.ValidateCalls, 1)

	_, err = m.AcknowledgeWarnings(context.Background())
	assert.ErrorIs(t, err, kerrors.ErrNoPendingWarnings)
}

func toOverview(t *testing.T, m *Machine) {
	t.Helper()
	_, err := m.SubmitBookingForm(context.Background(), bookingForm())
	require.NoError(t, err)
	require.Equal(t, StateOverview, m.State())
}

func TestConfirmSingleFlight(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: true, GatewayToken: "tok-1"})
	provider.block = make(chan struct{})
	provider.started = make(chan struct{})

	m := newTestMachine(t, repo, fixedFactory(provider), Options{})
	toOverview(t, m)

	req := &models.ConfirmRequest{Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true}
	done := make(chan confirmAttempt, 1)
	go func() {
		out, err := m.Confirm(context.Background(), req)
		done <- confirmAttempt{out, err}
	}()

	<-provider.started
	assert.Equal(t, StateSubmitting, m.State())

	_, err := m.Confirm(context.Background(), req)
	assert.ErrorIs(t, err, kerrors.ErrConfirmInFlight)

	close(provider.block)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, StateSuccess, res.out.State)
	assert.Equal(t, StateSuccess, m.State())

	require.Len(t, repo.ConfirmCalls, 1)
	assert.Equal(t, "tok-1", repo.ConfirmCalls[0].GatewayToken)
}

func TestExpiryWinsOverInFlightOutcome(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: true, GatewayToken: "tok-1"})
	provider.block = make(chan struct{})
	provider.started = make(chan struct{})

	guard := &recordingGuard{}
	m := newTestMachine(t, repo, fixedFactory(provider), Options{Guard: guard})
	toOverview(t, m)

	done := make(chan confirmAttempt, 1)
	go func() {
		out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
			Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
		})
		done <- confirmAttempt{out, err}
	}()

	<-provider.started
	m.handleExpiry()
	assert.Equal(t, StateExpired, m.State())

	close(provider.block)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, StateExpired, res.out.State)

	// The successful provider outcome never reached the backend.
	assert.Empty(t, repo.ConfirmCalls)
	acquires, releases := guard.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	var mu sync.Mutex
	expiries := 0
	m := newTestMachine(t, repo, nil, Options{
		Hooks: Hooks{OnTransition: func(tr Transition) {
			if tr.To == StateExpired {
				mu.Lock()
				expiries++
				mu.Unlock()
			}
		}},
	})

	m.handleExpiry()
	m.handleExpiry()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, expiries)
}

func TestAcquiredTokenNarrowsMethods(t *testing.T) {
	view := pendingView("res-1")
	view.TokenAcquired = true
	view.PaymentProxy = models.ProxyGateway
	repo := reservation.NewInMemory()
	repo.Put(view)

	m := newTestMachine(t, repo, nil, Options{})

	// Payment already started: straight to the overview, narrowed to the
	// method matching the token's provider, acceptances carried over.
	assert.Equal(t, StateOverview, m.State())
	methods := m.View().ActivePaymentMethods
	require.Len(t, methods, 1)
	_, ok := methods[models.MethodCreditCard]
	assert.True(t, ok)

	sel := m.Selection()
	assert.Equal(t, models.MethodCreditCard, sel.Method)
	assert.True(t, sel.TermsAccepted)
	assert.True(t, sel.PrivacyAccepted)

	// Editing is locked until the token is discarded.
	assert.ErrorIs(t, m.Edit(), kerrors.ErrNotEditable)
	require.NoError(t, m.ClearToken(context.Background()))
	assert.Equal(t, StateEditing, m.State())
}

func TestFreeReservationUsesSynthesizedMethod(t *testing.T) {
	view := pendingView("res-1")
	view.OrderSummary = models.OrderSummary{Free: true, Currency: "CHF"}
	view.ActivePaymentMethods = nil
	repo := reservation.NewInMemory()
	repo.Put(view)

	provider := newStubProvider(models.MethodNone, models.PaymentOutcome{Success: true})
	m := newTestMachine(t, repo, fixedFactory(provider), Options{})
	toOverview(t, m)
	assert.Equal(t, models.MethodNone, m.Selection().Method)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{TermsAccepted: true, PrivacyAccepted: true})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)

	require.Len(t, repo.ConfirmCalls, 1)
	assert.Equal(t, models.MethodNone, repo.ConfirmCalls[0].Method)
}

func TestConfirmRequiresAcceptances(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: true})
	m := newTestMachine(t, repo, fixedFactory(provider), Options{})
	toOverview(t, m)

	_, err := m.Confirm(context.Background(), &models.ConfirmRequest{Method: models.MethodCreditCard, TermsAccepted: true})
	assert.ErrorIs(t, err, kerrors.ErrAcceptanceRequired)
	assert.Empty(t, repo.ConfirmCalls)
}

func TestConfirmRejectsUnofferedMethod(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	toOverview(t, m)

	_, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodIdeal, TermsAccepted: true, PrivacyAccepted: true,
	})
	assert.ErrorIs(t, err, kerrors.ErrMethodUnavailable)
}

func TestDeclinedPaymentReturnsToOverview(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: false, Reason: "card declined"})
	guard := &recordingGuard{}
	m := newTestMachine(t, repo, fixedFactory(provider), Options{Guard: guard})
	toOverview(t, m)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateOverview, out.State)
	assert.Equal(t, "card declined", out.Reason)
	assert.Equal(t, StateOverview, m.State())
	assert.Equal(t, models.MethodCreditCard, m.Selection().Method)

	_, _, globalErrs := m.Feedback()
	assert.Contains(t, globalErrs, "card declined")

	acquires, releases := guard.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
	assert.Empty(t, repo.ConfirmCalls)
}

func TestReservationChangedReloadsViewWholesale(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{
		Success: false, Reason: "price changed", ReservationChanged: true,
	})
	m := newTestMachine(t, repo, fixedFactory(provider), Options{})
	toOverview(t, m)

	updated := pendingView("res-1")
	updated.OrderSummary.TotalCents = 6500
	repo.Put(updated)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateOverview, out.State)
	assert.Equal(t, int64(6500), m.View().OrderSummary.TotalCents)
}

func TestProviderSuccessDoesNotImplyTerminalSuccess(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))
	repo.ConfirmFn = func(string, *models.ConfirmRequest) (*models.ConfirmResult, error) {
		return &models.ConfirmResult{
			Success:          false,
			ValidationErrors: []models.ValidationError{{Field: "reservation", Code: "conflict", Message: "reservation was modified"}},
		}, nil
	}

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: true, GatewayToken: "tok-1"})
	guard := &recordingGuard{}
	m := newTestMachine(t, repo, fixedFactory(provider), Options{Guard: guard})
	toOverview(t, m)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
	})
	require.NoError(t, err)

	// The backend refused, so the gateway token alone must not settle the session.
	assert.Equal(t, StateOverview, out.State)
	require.Len(t, out.ValidationErrors, 1)
	assert.Equal(t, StateOverview, m.State())

	acquires, releases := guard.counts()
	assert.Equal(t, acquires, releases)
}

func TestConfirmTransportErrorSurfacesAndRecovers(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{})
	provider.err = errors.New("connection refused")
	m := newTestMachine(t, repo, fixedFactory(provider), Options{})
	toOverview(t, m)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateOverview, out.State)

	_, _, globalErrs := m.Feedback()
	assert.NotEmpty(t, globalErrs)
}

func TestRedirectConfirmAwaitsProvider(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))
	repo.ConfirmFn = func(string, *models.ConfirmRequest) (*models.ConfirmResult, error) {
		return &models.ConfirmResult{Success: true, Redirect: true, RedirectURL: "https://pay.example.com/p/42"}, nil
	}

	provider := newStubProvider(models.MethodCreditCard, models.PaymentOutcome{Success: true, GatewayToken: "tok-1"})
	guard := &recordingGuard{}
	m := newTestMachine(t, repo, fixedFactory(provider), Options{Guard: guard})
	toOverview(t, m)

	out, err := m.Confirm(context.Background(), &models.ConfirmRequest{
		Method: models.MethodCreditCard, TermsAccepted: true, PrivacyAccepted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingProvider, out.State)
	assert.Equal(t, "https://pay.example.com/p/42", out.RedirectURL)
	assert.Equal(t, "https://pay.example.com/p/42", m.RedirectURL())

	// Still guarded while the customer is at the gateway.
	acquires, releases := guard.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 0, releases)

	settled := pendingView("res-1")
	settled.Status = models.StatusComplete
	m.handleStatusResolved(settled)
	assert.Equal(t, StateSuccess, m.State())

	acquires, releases = guard.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
}

type cancelRefusingRepo struct {
	*reservation.InMemory
}

func (r *cancelRefusingRepo) Cancel(context.Context, string) error {
	return errors.New("checked-in tickets present")
}

func TestCancelRefusalKeepsSessionAlive(t *testing.T) {
	inner := reservation.NewInMemory()
	inner.Put(pendingView("res-1"))
	repo := &cancelRefusingRepo{InMemory: inner}

	m := newTestMachine(t, repo, nil, Options{})
	toOverview(t, m)

	err := m.Cancel(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateOverview, m.State())
}

func TestCancelMovesToTerminalCancelled(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	require.NoError(t, m.Cancel(context.Background()))
	assert.Equal(t, StateCancelled, m.State())

	// Idempotent once cancelled.
	require.NoError(t, m.Cancel(context.Background()))
	assert.Equal(t, 1, repo.CancelCalls)
}

func TestOperationsAfterExpiryAreRejected(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	m.handleExpiry()

	_, err := m.SubmitBookingForm(context.Background(), bookingForm())
	assert.ErrorIs(t, err, kerrors.ErrReservationExpired)

	_, err = m.Confirm(context.Background(), &models.ConfirmRequest{TermsAccepted: true, PrivacyAccepted: true})
	assert.ErrorIs(t, err, kerrors.ErrReservationExpired)

	_, err = m.ApplyCode(context.Background(), "SUMMER", "")
	assert.ErrorIs(t, err, kerrors.ErrReservationExpired)
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	m.Close()

	assert.ErrorIs(t, m.Load(context.Background()), kerrors.ErrSessionClosed)
	_, err := m.SubmitBookingForm(context.Background(), bookingForm())
	assert.ErrorIs(t, err, kerrors.ErrSessionClosed)
}

func TestStaleStatusResolutionIgnoredAfterExpiry(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	m.handleExpiry()

	settled := pendingView("res-1")
	settled.Status = models.StatusComplete
	m.handleStatusResolved(settled)

	assert.Equal(t, StateExpired, m.State())
}

func TestEditReturnsToBookingStep(t *testing.T) {
	repo := reservation.NewInMemory()
	repo.Put(pendingView("res-1"))

	m := newTestMachine(t, repo, nil, Options{})
	toOverview(t, m)

	require.NoError(t, m.Edit())
	assert.Equal(t, StateEditing, m.State())
}
