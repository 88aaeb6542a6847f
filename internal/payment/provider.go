package payment

import (
	"context"
	"fmt"

	kerrors "kassa/internal/errors"
	"kassa/internal/models"
)

// Provider is one payment capability selected for a single confirm attempt.
// Pay resolves exactly once per invocation; Notifications is a possibly-empty
// stream that is closed no later than Pay's resolution. A fresh Provider is
// built per attempt, so a retry never observes the previous attempt's stream.
type Provider interface {
	Method() models.PaymentMethod
	Deferred() bool
	Pay(ctx context.Context) (models.PaymentOutcome, error)
	Notifications() <-chan models.StatusNotification
}

// Authorizer is the part of the gateway the token provider depends on.
type Authorizer interface {
	Authorize(ctx context.Context, amount int64, orderID, currency, description string) (*AuthorizeResponse, error)
}

// Factory builds the provider for a payment method. Dispatch is an exhaustive
// switch over the known methods, so an unhandled method is an explicit error
// instead of a silently missing lookup entry.
type Factory func(method models.PaymentMethod, view *models.ReservationView) (Provider, error)

// NewFactory wires the known payment methods to their provider variants.
func NewFactory(gateway Authorizer, redirectBaseURL string) Factory {
	return func(method models.PaymentMethod, view *models.ReservationView) (Provider, error) {
		switch method {
		case models.MethodNone:
			return newSimpleProvider(), nil
		case models.MethodCreditCard:
			return newTokenProvider(gateway, view), nil
		case models.MethodPayPal, models.MethodIdeal:
			return newRedirectProvider(method, view, redirectBaseURL), nil
		case models.MethodBankTransfer, models.MethodOnSite:
			return newDeferredProvider(method), nil
		default:
			return nil, fmt.Errorf("%w: %s", kerrors.ErrUnknownPaymentMethod, method)
		}
	}
}

// tokenProvider authorizes the amount against the gateway and hands the
// resulting payment id back as a gateway token.
type tokenProvider struct {
	gateway       Authorizer
	view          *models.ReservationView
	notifications chan models.StatusNotification
}

func newTokenProvider(gateway Authorizer, view *models.ReservationView) *tokenProvider {
	return &tokenProvider{
		gateway:       gateway,
		view:          view,
		notifications: make(chan models.StatusNotification, 4),
	}
}

func (p *tokenProvider) Method() models.PaymentMethod { return models.MethodCreditCard }
func (p *tokenProvider) Deferred() bool               { return false }

func (p *tokenProvider) Notifications() <-chan models.StatusNotification {
	return p.notifications
}

func (p *tokenProvider) notify(status, message string) {
	select {
	case p.notifications <- models.StatusNotification{Status: status, Message: message}:
	default:
	}
}

func (p *tokenProvider) Pay(ctx context.Context) (models.PaymentOutcome, error) {
	defer close(p.notifications)

	p.notify("processing", "authorizing payment")

	summary := p.view.OrderSummary
	resp, err := p.gateway.Authorize(ctx, summary.TotalCents, p.view.ID, summary.Currency, p.view.PurchaseContext.Title)
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("failed to acquire gateway token: %w", err)
	}

	if !resp.Success {
		return models.PaymentOutcome{Success: false, Reason: resp.Reason}, nil
	}

	return models.PaymentOutcome{Success: true, GatewayToken: resp.PaymentID}, nil
}

// redirectProvider resolves immediately with a redirect directive; settlement
// happens out of band after the customer returns from the gateway.
type redirectProvider struct {
	method        models.PaymentMethod
	view          *models.ReservationView
	redirectBase  string
	notifications chan models.StatusNotification
}

func newRedirectProvider(method models.PaymentMethod, view *models.ReservationView, redirectBase string) *redirectProvider {
	return &redirectProvider{
		method:        method,
		view:          view,
		redirectBase:  redirectBase,
		notifications: make(chan models.StatusNotification, 1),
	}
}

func (p *redirectProvider) Method() models.PaymentMethod { return p.method }
func (p *redirectProvider) Deferred() bool               { return false }

func (p *redirectProvider) Notifications() <-chan models.StatusNotification {
	return p.notifications
}

func (p *redirectProvider) Pay(ctx context.Context) (models.PaymentOutcome, error) {
	defer close(p.notifications)

	select {
	case p.notifications <- models.StatusNotification{Status: "waiting_redirect"}:
	default:
	}

	url := fmt.Sprintf("%s/redirect/%s?reservation=%s", p.redirectBase, p.method, p.view.ID)
	return models.PaymentOutcome{Success: true, RedirectURL: url}, nil
}

// deferredProvider covers offline settlement methods (bank transfer, on-site
// payment). The backend moves the reservation to a pending-offline status at
// confirm time; no further client action is needed.
type deferredProvider struct {
	method        models.PaymentMethod
	notifications chan models.StatusNotification
}

func newDeferredProvider(method models.PaymentMethod) *deferredProvider {
	p := &deferredProvider{method: method, notifications: make(chan models.StatusNotification)}
	close(p.notifications)
	return p
}

func (p *deferredProvider) Method() models.PaymentMethod { return p.method }
func (p *deferredProvider) Deferred() bool               { return true }

func (p *deferredProvider) Notifications() <-chan models.StatusNotification {
	return p.notifications
}

func (p *deferredProvider) Pay(ctx context.Context) (models.PaymentOutcome, error) {
	return models.PaymentOutcome{Success: true}, nil
}

// simpleProvider is the synthesized NONE method for free reservations.
type simpleProvider struct {
	notifications chan models.StatusNotification
}

func newSimpleProvider() *simpleProvider {
	p := &simpleProvider{notifications: make(chan models.StatusNotification)}
	close(p.notifications)
	return p
}

func (p *simpleProvider) Method() models.PaymentMethod { return models.MethodNone }
func (p *simpleProvider) Deferred() bool               { return false }

func (p *simpleProvider) Notifications() <-chan models.StatusNotification {
	return p.notifications
}

func (p *simpleProvider) Pay(ctx context.Context) (models.PaymentOutcome, error) {
	return models.PaymentOutcome{Success: true}, nil
}
