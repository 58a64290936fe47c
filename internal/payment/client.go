package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Intent is a request to open a gateway order for the amount to be charged.
type Intent struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status"`
}

// Client talks to the payment gateway's REST API.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      httpClient,
	}
}

func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != "" &&
		!strings.HasPrefix(c.keyID, "your-") && !strings.HasPrefix(c.keySecret, "your-")
}

func (c *Client) CreateIntent(ctx context.Context, intent Intent) (*GatewayOrder, error) {
	body, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doOrder(req)
}

// FetchOrder reads a gateway order back, including the amount it was opened for.
func (c *Client) FetchOrder(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+url.PathEscape(gatewayOrderID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.doOrder(req)
}

// AuthorizedAmount reports the amount, in minor units, and currency of the
// gateway order a checkout confirmation refers to.
func (c *Client) AuthorizedAmount(ctx context.Context, gatewayOrderID string) (int64, string, error) {
	order, err := c.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		return 0, "", err
	}
	if order.ID != gatewayOrderID {
		return 0, "", fmt.Errorf("payment gateway returned order %q for %q", order.ID, gatewayOrderID)
	}
	return order.Amount, order.Currency, nil
}

func (c *Client) doOrder(req *http.Request) (*GatewayOrder, error) {
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var order GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode gateway order: %w", err)
	}
	return &order, nil
}

// VerifyCheckout checks the signature the gateway returns to the browser
// after a successful payment.
func (c *Client) VerifyCheckout(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" {
		return false
	}
	return VerifySignature(c.keySecret, CheckoutPayload(gatewayOrderID, paymentID), signature)
}
