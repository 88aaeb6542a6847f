package service

import (
	"context"
	"sync"
	"time"

	"kassa/internal/cache"
	"kassa/internal/checkout"
	"kassa/internal/clock"
	"kassa/internal/embed"
	"kassa/internal/logger"
	"kassa/internal/metrics"
	"kassa/internal/models"
	"kassa/internal/payment"
	"kassa/internal/reservation"
)

// Publisher is the slice of the messaging client the service needs.
type Publisher interface {
	Publish(subject string, event interface{})
}

// Notifier delivers terminal events to embedding hosts.
type Notifier interface {
	Notify(ctx context.Context, origin string, event embed.Event)
}

// Config tunes the checkout session behaviour.
type Config struct {
	PollInterval    time.Duration
	SessionGrace    time.Duration
	DefaultLanguage string
}

// Deps are the collaborators of the checkout service. Sessions, Events and
// Embeds are optional; a nil value disables the corresponding side effect.
// Embeds is the direct-delivery path used when no event bus is wired; with a
// bus, the consumers binary forwards terminal events to embedding hosts.
type Deps struct {
	Repo      reservation.Repository
	Providers payment.Factory
	Sessions  *cache.SessionStore
	Events    Publisher
	Embeds    Notifier
	Clock     clock.Clock
}

type session struct {
	machine *checkout.Machine
	cancel  context.CancelFunc
}

// CheckoutService is the registry of live checkout sessions, one machine and
// one monitor goroutine per reservation. It composes the side effects around
// the machine: metrics, lifecycle events, embedding notifications and session
// snapshots. Hooks fire with the machine lock held, so anything that could
// block or re-enter the machine is pushed to a goroutine.
type CheckoutService struct {
	repo      reservation.Repository
	providers payment.Factory
	sessions  *cache.SessionStore
	events    Publisher
	embeds    Notifier
	clk       clock.Clock
	cfg       Config

	mu     sync.Mutex
	active map[string]*session
}

func NewCheckoutService(deps Deps, cfg Config) *CheckoutService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SessionGrace <= 0 {
		cfg.SessionGrace = 10 * time.Minute
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &CheckoutService{
		repo:      deps.Repo,
		providers: deps.Providers,
		sessions:  deps.Sessions,
		events:    deps.Events,
		embeds:    deps.Embeds,
		clk:       deps.Clock,
		cfg:       cfg,
		active:    make(map[string]*session),
	}
}

// Open returns the live session for a reservation, creating one when needed.
func (s *CheckoutService) Open(ctx context.Context, reservationID, lang string) (*checkout.Machine, error) {
	s.mu.Lock()
	if sess, ok := s.active[reservationID]; ok {
		s.mu.Unlock()
		return sess.machine, nil
	}
	s.mu.Unlock()

	if lang == "" {
		lang = s.cfg.DefaultLanguage
		if s.sessions != nil {
			if snap, err := s.sessions.Get(ctx, reservationID); err == nil && snap != nil && snap.Language != "" {
				lang = snap.Language
			}
		}
	}

	m := checkout.NewMachine(s.repo, s.providers, reservationID, checkout.Options{
		Clock:    s.clk,
		Language: lang,
		Hooks: checkout.Hooks{
			OnTransition: s.onTransition,
			OnAttempt:    s.onAttempt,
		},
	})
	if err := m.Load(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.active[reservationID]; ok {
		// Lost the race against a concurrent Open.
		s.mu.Unlock()
		m.Close()
		return existing.machine, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	sess := &session{machine: m, cancel: cancel}
	s.active[reservationID] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	monitor := checkout.NewMonitor(m, s.repo, checkout.MonitorOptions{
		Interval: s.cfg.PollInterval,
		Clock:    s.clk,
		OnPoll: func(d time.Duration, err error) {
			if err == nil {
				metrics.ObservePoll(d)
			}
		},
	})
	go func() {
		monitor.Run(runCtx)
		s.retire(reservationID, sess)
	}()

	return m, nil
}

// Get returns the live session without creating one.
func (s *CheckoutService) Get(reservationID string) (*checkout.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[reservationID]
	if !ok {
		return nil, false
	}
	return sess.machine, true
}

// CloseSession tears down the live session and drops its snapshot.
func (s *CheckoutService) CloseSession(ctx context.Context, reservationID string) {
	s.mu.Lock()
	sess, ok := s.active[reservationID]
	if ok {
		delete(s.active, reservationID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.cancel()
	sess.machine.Close()
	metrics.ActiveSessions.Dec()

	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, reservationID); err != nil {
			logger.WithReservation(reservationID).Warn("failed to delete session snapshot", "error", err)
		}
	}
}

// retire removes a finished session after the grace period, so a customer
// returning from a gateway redirect still sees the terminal state.
func (s *CheckoutService) retire(reservationID string, sess *session) {
	timer := s.clk.NewTimer(s.cfg.SessionGrace)
	defer timer.Stop()
	<-timer.C()

	s.mu.Lock()
	current, ok := s.active[reservationID]
	if !ok || current != sess {
		s.mu.Unlock()
		return
	}
	delete(s.active, reservationID)
	s.mu.Unlock()

	sess.machine.Close()
	metrics.ActiveSessions.Dec()
}

// Shutdown closes all live sessions.
func (s *CheckoutService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.active))
	for id, sess := range s.active {
		sessions = append(sessions, sess)
		delete(s.active, id)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
		sess.machine.Close()
		metrics.ActiveSessions.Dec()
	}
}

// HandleGatewayNotification reacts to a gateway webhook. The order id of a
// gateway payment is the reservation id. The notification itself carries no
// authority: it only triggers a re-check against the backend.
func (s *CheckoutService) HandleGatewayNotification(ctx context.Context, payload models.GatewayNotificationPayload) error {
	log := logger.WithReservation(payload.OrderID)
	log.Info("gateway notification received", "payment_id", payload.PaymentID, "status", payload.Status)

	if _, err := s.repo.ForceStatusCheck(ctx, payload.OrderID); err != nil {
		log.Warn("forced status check failed", "error", err)
	}

	if m, ok := s.Get(payload.OrderID); ok {
		return m.ResolveStatus(ctx)
	}
	return nil
}

// ForceCheck asks the backend to re-query the payment provider and applies
// the result to the live session, when one exists.
func (s *CheckoutService) ForceCheck(ctx context.Context, reservationID string) (*models.ForceCheckResult, error) {
	result, err := s.repo.ForceStatusCheck(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if m, ok := s.Get(reservationID); ok {
		if err := m.ResolveStatus(ctx); err != nil {
			logger.WithReservation(reservationID).Warn("failed to apply forced status", "error", err)
		}
	}
	return result, nil
}

// StateResponse assembles the externally visible session state.
func (s *CheckoutService) StateResponse(m *checkout.Machine) *models.CheckoutStateResponse {
	view := m.View()
	warnings, fieldErrs, globalErrs := m.Feedback()

	resp := &models.CheckoutStateResponse{
		State:            string(m.State()),
		RemainingSeconds: int64(m.Remaining() / time.Second),
		SelectedMethod:   m.Selection().Method,
		RedirectURL:      m.RedirectURL(),
		Warnings:         warnings,
		ValidationErrors: fieldErrs,
		GlobalErrors:     globalErrs,
		Reservation:      view,
	}
	if view != nil {
		resp.ReservationID = view.ID
		resp.Status = view.Status
	}
	return resp
}

func (s *CheckoutService) onTransition(t checkout.Transition) {
	metrics.Transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	go s.afterTransition(t)
}

// afterTransition runs the slow side effects of a transition off the machine
// lock: the snapshot write, the lifecycle event and the embedding callback.
func (s *CheckoutService) afterTransition(t checkout.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.saveSnapshot(ctx, t)

	if !t.To.Terminal() {
		return
	}

	subject, embedType := lifecycleSubject(t.To)
	if subject != "" && s.events != nil {
		event := models.CheckoutLifecycleEvent{
			ReservationID: t.ReservationID,
			Status:        t.Status,
			State:         string(t.To),
			Error:         t.Error,
			Timestamp:     s.clk.Now(),
		}
		if t.View != nil {
			event.EmbeddingOrigin = t.View.PurchaseContext.EmbeddingOrigin
		}
		s.events.Publish(subject, event)
	}

	if embedType != "" && s.embeds != nil && t.View != nil && t.View.PurchaseContext.EmbeddingEnabled {
		s.embeds.Notify(ctx, t.View.PurchaseContext.EmbeddingOrigin, embed.Event{
			Type:          embedType,
			ReservationID: t.ReservationID,
			Status:        string(t.Status),
			Reason:        t.Error,
			Timestamp:     s.clk.Now(),
		})
	}
}

func lifecycleSubject(state checkout.State) (string, string) {
	switch state {
	case checkout.StateSuccess:
		return models.EventCheckoutConfirmed, embed.EventConfirmed
	case checkout.StateCancelled:
		return models.EventCheckoutCancelled, embed.EventCancelled
	case checkout.StateExpired:
		return models.EventCheckoutExpired, embed.EventExpired
	case checkout.StateError:
		return models.EventCheckoutFailed, embed.EventFailed
	}
	return "", ""
}

func (s *CheckoutService) saveSnapshot(ctx context.Context, t checkout.Transition) {
	if s.sessions == nil {
		return
	}
	m, ok := s.Get(t.ReservationID)
	if !ok {
		return
	}

	snapshot := &cache.SessionSnapshot{
		ReservationID:  t.ReservationID,
		State:          string(t.To),
		SelectedMethod: string(m.Selection().Method),
		RedirectURL:    m.RedirectURL(),
		UpdatedAt:      s.clk.Now(),
	}
	ttl := m.Remaining() + s.cfg.SessionGrace
	if err := s.sessions.Save(ctx, snapshot, ttl); err != nil {
		logger.WithReservation(t.ReservationID).Warn("failed to save session snapshot", "error", err)
	}
}

func (s *CheckoutService) onAttempt(e models.PaymentOutcomeEvent) {
	metrics.RecordPaymentOutcome(string(e.Method), e.Success)
	if e.Success {
		metrics.Confirms.WithLabelValues("success").Inc()
	} else {
		metrics.Confirms.WithLabelValues("failure").Inc()
	}
	if s.events != nil {
		go s.events.Publish(models.EventPaymentOutcome, e)
	}
}
