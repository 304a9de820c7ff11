package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(apiURL string) *Client {
	return NewClient(apiURL, "test-key",
		"https://shop.example/payment-success",
		"https://shop.example/payment-failed",
		"https://shop.example/api/v1/webhooks/payment")
}

func TestCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("RT-UDDOKTAPAY-API-KEY"))

		var req CheckoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "order-123", req.Metadata.OrderRef)
		assert.Equal(t, int64(500), req.Amount)

		json.NewEncoder(w).Encode(map[string]string{
			"payment_url": "https://pay.example/session/abc",
			"invoice_id":  "INV-001",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.CreateCheckout(context.Background(), "order-123", "Rahim", "rahim@example.com", 500)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/session/abc", session.PaymentURL)
	assert.Equal(t, "INV-001", session.InvoiceID)
}

func TestCreateCheckoutFieldAliases(t *testing.T) {
	// custom installs reply with redirect_url/id instead of payment_url/invoice_id
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"redirect_url": "https://pay.example/session/xyz",
			"id":           "INV-002",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.CreateCheckout(context.Background(), "order-456", "Karim", "karim@example.com", 1000)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/session/xyz", session.PaymentURL)
	assert.Equal(t, "INV-002", session.InvoiceID)
}

func TestCreateCheckoutErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.CreateCheckout(context.Background(), "order-789", "", "", 100)
	assert.Error(t, err)
	assert.Nil(t, session)
	assert.Contains(t, err.Error(), "401")
}

func TestCreateCheckoutMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but no usable redirect URL or invoice id
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateCheckout(context.Background(), "order-000", "", "", 100)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCreateCheckoutMissingKey(t *testing.T) {
	client := NewClient("https://pay.example/api/checkout", "", "", "", "")
	_, err := client.CreateCheckout(context.Background(), "order-111", "", "", 100)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
