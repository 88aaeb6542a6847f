package checkout

import (
	"kassa/internal/models"
)

// Selection is the ephemeral overview form state. It is rebuilt from the
// latest reservation view every time the overview is (re)entered, never
// carried over from a stale attempt, because the backend may have mutated the
// reservation concurrently.
type Selection struct {
	Method          models.PaymentMethod
	TermsAccepted   bool
	PrivacyAccepted bool
	CaptchaResponse string
}

// rebuildSelection derives a fresh Selection from a reservation view.
// previous is consulted only to keep an already chosen method selected when it
// is still offered.
func rebuildSelection(view *models.ReservationView, previous *Selection) *Selection {
	sel := &Selection{}

	switch {
	case view.OrderSummary.Free:
		sel.Method = models.MethodNone
	case view.TokenAcquired:
		// Payment already started elsewhere: the method map has been narrowed
		// to the token's provider and the acceptances were given back then.
		for method := range view.ActivePaymentMethods {
			sel.Method = method
		}
		sel.TermsAccepted = true
		sel.PrivacyAccepted = true
	case previous != nil && previous.Method != "":
		if _, ok := view.ActivePaymentMethods[previous.Method]; ok {
			sel.Method = previous.Method
		}
	case len(view.ActivePaymentMethods) == 1:
		for method := range view.ActivePaymentMethods {
			sel.Method = method
		}
	}

	return sel
}
