package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	kerrors "kassa/internal/errors"
	"kassa/internal/models"
)

// Client talks to the reservation backend over HTTP/JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrPaymentProcessing, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return kerrors.ErrReservationNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		// 5xx never leaks transport details to the customer
		return fmt.Errorf("%w: backend returned %d", kerrors.ErrPaymentProcessing, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusUnprocessableEntity:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) Fetch(ctx context.Context, id string) (*models.ReservationView, error) {
	var view models.ReservationView
	if err := c.do(ctx, http.MethodGet, "/api/v1/reservations/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}
	return &view, nil
}

func (c *Client) ValidateToOverview(ctx context.Context, id string, form *models.BookingFormRequest, lang string, ignoreWarnings bool) (*models.ValidationResult, error) {
	payload := *form
	payload.IgnoreWarnings = ignoreWarnings
	payload.Language = lang

	var result models.ValidationResult
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/validate-to-overview"
	if err := c.do(ctx, http.MethodPost, path, &payload, &result); err != nil {
		return nil, fmt.Errorf("failed to validate reservation: %w", err)
	}
	return &result, nil
}

func (c *Client) Confirm(ctx context.Context, id string, overview *models.ConfirmRequest, lang string) (*models.ConfirmResult, error) {
	payload := *overview
	payload.Language = lang

	var result models.ConfirmResult
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/confirm"
	if err := c.do(ctx, http.MethodPost, path, &payload, &result); err != nil {
		return nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}
	return &result, nil
}

func (c *Client) Cancel(ctx context.Context, id string) error {
	path := "/api/v1/reservations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	return nil
}

func (c *Client) GetStatus(ctx context.Context, id string) (*models.ReservationView, error) {
	var view models.ReservationView
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, fmt.Errorf("failed to get reservation status: %w", err)
	}
	return &view, nil
}

func (c *Client) ForceStatusCheck(ctx context.Context, id string) (*models.ForceCheckResult, error) {
	var result models.ForceCheckResult
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/force-status-check"
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to force status check: %w", err)
	}
	return &result, nil
}

func (c *Client) ApplyCode(ctx context.Context, id, code, email string) (*models.ValidationResult, error) {
	var result models.ValidationResult
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/code"
	body := models.ApplyCodeRequest{Code: code, Email: email}
	if err := c.do(ctx, http.MethodPost, path, &body, &result); err != nil {
		return nil, fmt.Errorf("failed to apply code: %w", err)
	}
	return &result, nil
}

func (c *Client) RemoveCode(ctx context.Context, id string) error {
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/code"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to remove code: %w", err)
	}
	return nil
}

func (c *Client) ClearToken(ctx context.Context, id string) error {
	path := "/api/v1/reservations/" + url.PathEscape(id) + "/payment-token"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to clear payment token: %w", err)
	}
	return nil
}
