package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured is returned when the API key is missing
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrMalformedResponse is returned when the gateway reply lacks the
	// redirect URL or invoice id under any of its accepted aliases
	ErrMalformedResponse = errors.New("malformed gateway response")
)

// Client talks to the UddoktaPay-style hosted checkout API
type Client struct {
	apiURL      string
	apiKey      string
	redirectURL string
	cancelURL   string
	webhookURL  string
	httpClient  *http.Client
}

// NewClient creates a gateway client
func NewClient(apiURL, apiKey, redirectURL, cancelURL, webhookURL string) *Client {
	return &Client{
		apiURL:      apiURL,
		apiKey:      apiKey,
		redirectURL: redirectURL,
		cancelURL:   cancelURL,
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckoutRequest is the payload sent to the gateway. Metadata.OrderRef is
// echoed back verbatim in the webhook and carries the order id or the
// synthetic wallet top-up reference.
type CheckoutRequest struct {
	FullName    string   `json:"full_name"`
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Metadata    Metadata `json:"metadata"`
	RedirectURL string   `json:"redirect_url"`
	CancelURL   string   `json:"cancel_url"`
	WebhookURL  string   `json:"webhook_url"`
}

// Metadata is the opaque blob the gateway echoes back in webhooks
type Metadata struct {
	OrderRef string `json:"order_id"`
}

// CheckoutSession is the normalized result of session creation
type CheckoutSession struct {
	PaymentURL string
	InvoiceID  string
}

// checkoutResponse captures the field aliases seen across gateway
// deployments; custom installs disagree on naming.
type checkoutResponse struct {
	PaymentURL    string `json:"payment_url"`
	RedirectURL   string `json:"redirect_url"`
	URL           string `json:"url"`
	InvoiceID     string `json:"invoice_id"`
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// CreateCheckout creates a hosted checkout session and returns the redirect
// URL and invoice id. Any non-2xx status or a body missing the expected
// fields fails the call; the caller must leave its own state untouched.
func (c *Client) CreateCheckout(ctx context.Context, orderRef, customerName, customerEmail string, amount int64) (*CheckoutSession, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	reqBody := CheckoutRequest{
		FullName:    customerName,
		Email:       customerEmail,
		Amount:      amount,
		Metadata:    Metadata{OrderRef: orderRef},
		RedirectURL: c.redirectURL,
		CancelURL:   c.cancelURL,
		WebhookURL:  c.webhookURL,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RT-UDDOKTAPAY-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed checkoutResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	session := &CheckoutSession{
		PaymentURL: firstNonEmpty(parsed.PaymentURL, parsed.RedirectURL, parsed.URL),
		InvoiceID:  firstNonEmpty(parsed.InvoiceID, parsed.ID, parsed.TransactionID),
	}
	if session.PaymentURL == "" || session.InvoiceID == "" {
		return nil, ErrMalformedResponse
	}
	return session, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
