package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Razorpay Orders API using basic auth with the
// key id and secret.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// NewClient creates a Razorpay client. Returns nil when credentials are
// not configured; callers must treat a nil client as payment service
// unavailable.
func NewClient(baseURL, keyID, keySecret string) *Client {
	if keyID == "" || keySecret == "" {
		return nil
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
	}
}

// KeyID returns the public key id handed to checkout clients
func (c *Client) KeyID() string {
	return c.keyID
}

// Order is a hosted-checkout order created with the provider
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// CreateOrder opens a hosted-checkout order. The amount is in rupees and
// converted to paise for the provider.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*Order, error) {
	payload := createOrderRequest{
		Amount:   int64(amount*100 + 0.5),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("razorpay order creation failed (HTTP %d): %s", resp.StatusCode, data)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay order: %w", err)
	}
	return &order, nil
}

// VerifySignature checks the checkout signature returned by the provider:
// an HMAC-SHA256 over "<orderID>|<paymentID>" keyed with the secret. The
// comparison is constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
