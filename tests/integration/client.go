package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"kassa/internal/models"
)

// Client is a thin helper for exercising a running checkout API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API under KASSA_API_URL, or skips the
// test when the variable is unset.
func NewClient(t *testing.T) *Client {
	t.Helper()
	baseURL := os.Getenv("KASSA_API_URL")
	if baseURL == "" {
		t.Skip("KASSA_API_URL not set, skipping integration test")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) GetState(reservationID string) (int, *models.CheckoutStateResponse, error) {
	var state models.CheckoutStateResponse
	code, err := c.do(http.MethodGet, "/api/v1/checkout/"+reservationID, nil, &state)
	return code, &state, err
}

func (c *Client) SubmitForm(reservationID string, form models.BookingFormRequest) (int, *models.CheckoutStateResponse, error) {
	var state models.CheckoutStateResponse
	code, err := c.do(http.MethodPost, "/api/v1/checkout/"+reservationID+"/form", form, &state)
	return code, &state, err
}

func (c *Client) Confirm(reservationID string, req models.ConfirmCheckoutRequest) (int, *models.ConfirmCheckoutResponse, error) {
	var result models.ConfirmCheckoutResponse
	code, err := c.do(http.MethodPost, "/api/v1/checkout/"+reservationID+"/confirm", req, &result)
	return code, &result, err
}

func (c *Client) Cancel(reservationID string) (int, error) {
	code, err := c.do(http.MethodPost, "/api/v1/checkout/"+reservationID+"/cancel", nil, nil)
	return code, err
}

func (c *Client) Health() (int, error) {
	return c.doSimple(http.MethodGet, "/health")
}

func (c *Client) doSimple(method, path string) (int, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
