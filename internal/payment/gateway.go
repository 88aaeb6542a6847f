package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// Gateway talks to the payment gateway used by token-based methods. Every
// request carries a SHA-256 signature over the alphabetically sorted request
// parameters plus the merchant secret.
type Gateway struct {
	baseURL    string
	merchantID string
	secret     string
	httpClient *http.Client
}

type Config struct {
	BaseURL    string
	MerchantID string
	Secret     string
	Timeout    time.Duration
}

type AuthorizeRequest struct {
	MerchantID  string `json:"merchantId"`
	Signature   string `json:"signature"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	Language    string `json:"language,omitempty"`
}

type AuthorizeResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type CheckResponse struct {
	Success  bool            `json:"success"`
	Payments []PaymentDetail `json:"payments"`
	OrderID  string          `json:"orderId"`
}

type PaymentDetail struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updatedAt"`
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Gateway{
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		secret:     cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// sign concatenates the alphabetically sorted parameter values, the merchant
// id and the secret, and returns the hex SHA-256 digest.
func (g *Gateway) sign(params map[string]string) string {
	params["MerchantId"] = g.merchantID
	params["Secret"] = g.secret

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var signString string
	for _, key := range keys {
		signString += params[key]
	}

	hash := sha256.Sum256([]byte(signString))
	return hex.EncodeToString(hash[:])
}

func (g *Gateway) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Authorize reserves the amount against the gateway and returns an opaque
// payment id usable as a gateway token. The amount is authorized, not captured.
func (g *Gateway) Authorize(ctx context.Context, amount int64, orderID, currency, description string) (*AuthorizeResponse, error) {
	signature := g.sign(map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": currency,
		"OrderId":  orderID,
	})

	req := AuthorizeRequest{
		MerchantID:  g.merchantID,
		Signature:   signature,
		Amount:      amount,
		OrderID:     orderID,
		Currency:    currency,
		Description: description,
	}

	var result AuthorizeResponse
	if err := g.post(ctx, "/api/v1/payments/authorize", req, &result); err != nil {
		return nil, fmt.Errorf("failed to authorize payment: %w", err)
	}
	return &result, nil
}

// Check returns the gateway-side status of all payments for an order.
func (g *Gateway) Check(ctx context.Context, orderID string) (*CheckResponse, error) {
	signature := g.sign(map[string]string{
		"OrderId": orderID,
	})

	reqData := map[string]interface{}{
		"merchantId": g.merchantID,
		"signature":  signature,
		"orderId":    orderID,
	}

	var result CheckResponse
	if err := g.post(ctx, "/api/v1/payments/check", reqData, &result); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	return &result, nil
}

// Capture completes a previously authorized payment.
func (g *Gateway) Capture(ctx context.Context, paymentID string, amount int64) error {
	signature := g.sign(map[string]string{
		"Amount":    strconv.FormatInt(amount, 10),
		"PaymentId": paymentID,
	})

	reqData := map[string]interface{}{
		"merchantId": g.merchantID,
		"signature":  signature,
		"paymentId":  paymentID,
		"amount":     amount,
	}

	if err := g.post(ctx, "/api/v1/payments/capture", reqData, nil); err != nil {
		return fmt.Errorf("failed to capture payment: %w", err)
	}
	return nil
}

// Void cancels a previously authorized payment.
func (g *Gateway) Void(ctx context.Context, paymentID string, reason string) error {
	signature := g.sign(map[string]string{
		"PaymentId": paymentID,
	})

	reqData := map[string]interface{}{
		"merchantId": g.merchantID,
		"signature":  signature,
		"paymentId":  paymentID,
		"reason":     reason,
	}

	if err := g.post(ctx, "/api/v1/payments/void", reqData, nil); err != nil {
		return fmt.Errorf("failed to void payment: %w", err)
	}
	return nil
}
