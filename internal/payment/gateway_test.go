package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agendo/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PaymentConfig{
		Enabled:     true,
		BaseURL:     baseURL,
		AccessToken: "token-123",
		SuccessURL:  "https://agendo.example/paid",
		FailureURL:  "https://agendo.example/failed",
	})
}

func TestCreateCheckout(t *testing.T) {
	var captured preferenceRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(preferenceResponse{
			ID:        "pref-1",
			InitPoint: "https://gateway.example/checkout/pref-1",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	checkout, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		ReservationID: "res-1",
		Title:         "Consultation",
		AmountCents:   15000,
		Currency:      "BRL",
		PayerName:     "Bruno Lima",
		PayerEmail:    "bruno@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "pref-1", checkout.ID)
	assert.Equal(t, "https://gateway.example/checkout/pref-1", checkout.CheckoutURL)

	assert.Equal(t, "res-1", captured.ExternalReference)
	require.Len(t, captured.Items, 1)
	assert.Equal(t, 150.0, captured.Items[0].UnitPrice)
	assert.Equal(t, "BRL", captured.Items[0].CurrencyID)
	assert.Equal(t, "https://agendo.example/paid", captured.BackURLs.Success)
}

func TestCreateCheckout_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateCheckout(context.Background(), CheckoutRequest{ReservationID: "res-1"})
	assert.Error(t, err)
}

func TestQueryPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/987", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 987,
			"status":             "approved",
			"external_reference": "res-1",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	info, err := client.QueryPayment(context.Background(), "987")
	require.NoError(t, err)

	assert.Equal(t, "987", info.ID)
	assert.True(t, info.Approved())
	assert.Equal(t, "res-1", info.ExternalReference)
}

func TestQueryPayment_NotApproved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 11,
			"status":             "rejected",
			"external_reference": "res-2",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	info, err := client.QueryPayment(context.Background(), "11")
	require.NoError(t, err)
	assert.False(t, info.Approved())
}
