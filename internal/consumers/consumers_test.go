package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/embed"
	"kassa/internal/models"
)

type recordedAttempt struct {
	events []models.PaymentOutcomeEvent
}

func (r *recordedAttempt) Record(_ context.Context, event models.PaymentOutcomeEvent) error {
	r.events = append(r.events, event)
	return nil
}

type recordedEvent struct {
	reservationIDs []string
	subjects       []string
}

func (r *recordedEvent) Record(_ context.Context, reservationID, subject string, _ []byte) error {
	r.reservationIDs = append(r.reservationIDs, reservationID)
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestPaymentOutcomesHandle(t *testing.T) {
	recorder := &recordedAttempt{}
	consumer := NewPaymentOutcomes(recorder)

	event := models.PaymentOutcomeEvent{
		AttemptID:     "a-1",
		ReservationID: "res-1",
		Method:        models.MethodCreditCard,
		Success:       true,
		Timestamp:     time.Now(),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, consumer.Handle(data))
	require.Len(t, recorder.events, 1)
	assert.Equal(t, "a-1", recorder.events[0].AttemptID)
}

func TestPaymentOutcomesRejectsGarbage(t *testing.T) {
	consumer := NewPaymentOutcomes(&recordedAttempt{})
	assert.Error(t, consumer.Handle([]byte("not json")))
}

func TestCheckoutEventsHandler(t *testing.T) {
	recorder := &recordedEvent{}
	consumer := NewCheckoutEvents(recorder)
	handler := consumer.Handler(models.EventCheckoutConfirmed)

	event := models.CheckoutLifecycleEvent{
		ReservationID: "res-1",
		Status:        models.StatusComplete,
		State:         "TERMINAL_SUCCESS",
		Timestamp:     time.Now(),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, handler(data))
	require.Len(t, recorder.subjects, 1)
	assert.Equal(t, models.EventCheckoutConfirmed, recorder.subjects[0])
	assert.Equal(t, "res-1", recorder.reservationIDs[0])
}

type recordedNotify struct {
	origins []string
	events  []embed.Event
}

func (r *recordedNotify) Notify(_ context.Context, origin string, event embed.Event) {
	r.origins = append(r.origins, origin)
	r.events = append(r.events, event)
}

func TestEmbedForwarderDeliversToOrigin(t *testing.T) {
	notifier := &recordedNotify{}
	forwarder := NewEmbedForwarder(notifier)
	handler := forwarder.Handler(models.EventCheckoutExpired)

	data, err := json.Marshal(models.CheckoutLifecycleEvent{
		ReservationID:   "res-1",
		State:           "TERMINAL_EXPIRED",
		EmbeddingOrigin: "https://host.example.com",
	})
	require.NoError(t, err)

	require.NoError(t, handler(data))
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "https://host.example.com", notifier.origins[0])
	assert.Equal(t, embed.EventExpired, notifier.events[0].Type)
	assert.Equal(t, "res-1", notifier.events[0].ReservationID)
}

func TestEmbedForwarderSkipsNonEmbedded(t *testing.T) {
	notifier := &recordedNotify{}
	forwarder := NewEmbedForwarder(notifier)
	handler := forwarder.Handler(models.EventCheckoutConfirmed)

	data, err := json.Marshal(models.CheckoutLifecycleEvent{ReservationID: "res-1"})
	require.NoError(t, err)

	require.NoError(t, handler(data))
	assert.Empty(t, notifier.events)
}

func TestCheckoutEventsRequiresReservationID(t *testing.T) {
	consumer := NewCheckoutEvents(&recordedEvent{})
	handler := consumer.Handler(models.EventCheckoutExpired)

	data, err := json.Marshal(models.CheckoutLifecycleEvent{State: "TERMINAL_EXPIRED"})
	require.NoError(t, err)
	assert.Error(t, handler(data))
}
