package integration

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/models"
)

// reservationID must point at a PENDING reservation in the backend the API
// under test talks to.
func reservationID(t *testing.T) string {
	t.Helper()
	id := os.Getenv("KASSA_TEST_RESERVATION_ID")
	if id == "" {
		t.Skip("KASSA_TEST_RESERVATION_ID not set, skipping integration test")
	}
	return id
}

func TestHealth(t *testing.T) {
	client := NewClient(t)
	code, err := client.Health()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckoutFlowAgainstBackend(t *testing.T) {
	client := NewClient(t)
	id := reservationID(t)

	code, state, err := client.GetState(id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "EDITING", state.State)
	require.Greater(t, state.RemainingSeconds, int64(0))

	code, state, err = client.SubmitForm(id, models.BookingFormRequest{
		Contact: models.ContactInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OVERVIEW", state.State)

	code, result, err := client.Confirm(id, models.ConfirmCheckoutRequest{
		Method:          models.MethodBankTransfer,
		TermsAccepted:   true,
		PrivacyAccepted: true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "TERMINAL_SUCCESS", result.State)
}

func TestUnknownReservation(t *testing.T) {
	client := NewClient(t)

	code, _, err := client.GetState("does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}
