package reservation

import (
	"context"
	"sync"

	kerrors "kassa/internal/errors"
	"kassa/internal/models"
)

// InMemory is a Repository backed by process memory. It is used by local
// development mode and by tests; behaviour of individual operations can be
// overridden through the exported hooks.
type InMemory struct {
	mu    sync.Mutex
	views map[string]*models.ReservationView

	// Optional overrides. When nil, the default behaviour applies.
	ValidateFn func(id string, form *models.BookingFormRequest, ignoreWarnings bool) (*models.ValidationResult, error)
	ConfirmFn  func(id string, overview *models.ConfirmRequest) (*models.ConfirmResult, error)

	// Call log, for assertions.
	ValidateCalls []ValidateCall
	ConfirmCalls  []models.ConfirmRequest
	StatusCalls   int
	CancelCalls   int
}

// ValidateCall records one validate-to-overview invocation.
type ValidateCall struct {
	Form           models.BookingFormRequest
	IgnoreWarnings bool
}

func NewInMemory() *InMemory {
	return &InMemory{views: make(map[string]*models.ReservationView)}
}

// Put stores or replaces a reservation view.
func (m *InMemory) Put(view *models.ReservationView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[view.ID] = view
}

func (m *InMemory) get(id string) (*models.ReservationView, error) {
	view, ok := m.views[id]
	if !ok {
		return nil, kerrors.ErrReservationNotFound
	}
	copied := *view
	return &copied, nil
}

func (m *InMemory) Fetch(ctx context.Context, id string) (*models.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *InMemory) ValidateToOverview(ctx context.Context, id string, form *models.BookingFormRequest, lang string, ignoreWarnings bool) (*models.ValidationResult, error) {
	m.mu.Lock()
	m.ValidateCalls = append(m.ValidateCalls, ValidateCall{Form: *form, IgnoreWarnings: ignoreWarnings})
	fn := m.ValidateFn
	view, err := m.get(id)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(id, form, ignoreWarnings)
	}

	m.mu.Lock()
	view.Contact = form.Contact
	if len(form.TicketAssignments) > 0 {
		view.TicketAssignments = form.TicketAssignments
	}
	m.views[id] = view
	m.mu.Unlock()
	return &models.ValidationResult{Success: true}, nil
}

func (m *InMemory) Confirm(ctx context.Context, id string, overview *models.ConfirmRequest, lang string) (*models.ConfirmResult, error) {
	m.mu.Lock()
	m.ConfirmCalls = append(m.ConfirmCalls, *overview)
	fn := m.ConfirmFn
	view, err := m.get(id)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(id, overview)
	}

	m.mu.Lock()
	switch overview.Method {
	case models.MethodBankTransfer:
		view.Status = models.StatusOfflinePayment
	case models.MethodOnSite:
		view.Status = models.StatusDeferredOfflinePayment
	default:
		view.Status = models.StatusComplete
	}
	m.views[id] = view
	m.mu.Unlock()
	return &models.ConfirmResult{Success: true}, nil
}

func (m *InMemory) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++
	view, err := m.get(id)
	if err != nil {
		return err
	}
	view.Status = models.StatusCancelled
	m.views[id] = view
	return nil
}

func (m *InMemory) GetStatus(ctx context.Context, id string) (*models.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls++
	return m.get(id)
}

func (m *InMemory) ForceStatusCheck(ctx context.Context, id string) (*models.ForceCheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return &models.ForceCheckResult{Success: true, Status: view.Status}, nil
}

func (m *InMemory) ApplyCode(ctx context.Context, id, code, email string) (*models.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if code == "" {
		return &models.ValidationResult{
			Success:          false,
			ValidationErrors: []models.ValidationError{{Field: "code", Code: "empty", Message: "code must not be empty"}},
		}, nil
	}
	return &models.ValidationResult{Success: true}, nil
}

func (m *InMemory) RemoveCode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.get(id)
	return err
}

func (m *InMemory) ClearToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(id)
	if err != nil {
		return err
	}
	view.TokenAcquired = false
	view.PaymentProxy = ""
	m.views[id] = view
	return nil
}
