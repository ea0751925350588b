package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whsec_unit_test"
	client := NewStripeClient("", "sk_test", secret, time.Second)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	t.Run("AcceptsFreshValidSignature", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now())
		require.NoError(t, client.VerifyWebhookSignature(payload, header, 5*time.Minute))
	})

	t.Run("AcceptsUppercaseHexSignature", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now())
		parts := strings.SplitN(header, "v1=", 2)
		header = parts[0] + "v1=" + strings.ToUpper(parts[1])
		require.NoError(t, client.VerifyWebhookSignature(payload, header, 5*time.Minute))
	})

	t.Run("RejectsWrongSecret", func(t *testing.T) {
		header := SignWebhookPayload("whsec_other", payload, time.Now())
		require.Error(t, client.VerifyWebhookSignature(payload, header, 5*time.Minute))
	})

	t.Run("RejectsTamperedPayload", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-1] = '!'
		require.Error(t, client.VerifyWebhookSignature(tampered, header, 5*time.Minute))
	})

	t.Run("RejectsStaleTimestamp", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now().Add(-10*time.Minute))
		err := client.VerifyWebhookSignature(payload, header, 5*time.Minute)
		require.ErrorContains(t, err, "tolerance")
	})

	t.Run("RejectsFutureTimestamp", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now().Add(10*time.Minute))
		err := client.VerifyWebhookSignature(payload, header, 5*time.Minute)
		require.ErrorContains(t, err, "tolerance")
	})

	t.Run("ZeroToleranceSkipsAgeCheck", func(t *testing.T) {
		header := SignWebhookPayload(secret, payload, time.Now().Add(-10*time.Hour))
		require.NoError(t, client.VerifyWebhookSignature(payload, header, 0))
	})

	t.Run("RejectsMissingHeader", func(t *testing.T) {
		require.Error(t, client.VerifyWebhookSignature(payload, "", 5*time.Minute))
	})

	t.Run("RejectsMalformedHeader", func(t *testing.T) {
		require.Error(t, client.VerifyWebhookSignature(payload, "v1=deadbeef", 5*time.Minute))
		require.Error(t, client.VerifyWebhookSignature(payload, "t=123456", 5*time.Minute))
		require.Error(t, client.VerifyWebhookSignature(payload, "t=notanumber,v1=deadbeef", 5*time.Minute))
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	input := CheckoutSessionInput{
		PurchaseUUID:  "b2f6f3f0-0000-4000-8000-000000000001",
		ServiceName:   "Company Tax Return",
		FinancialYear: "2025-2026",
		AmountCents:   19900,
		Currency:      "AUD",
		CustomerEmail: "client@example.com",
		SuccessURL:    "https://app.clearledger.test/purchases/success",
		CancelURL:     "https://app.clearledger.test/purchases/cancel",
	}

	t.Run("SendsFormEncodedSessionRequest", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "payment", r.PostForm.Get("mode"))
			assert.Equal(t, input.PurchaseUUID, r.PostForm.Get("client_reference_id"))
			assert.Equal(t, "client@example.com", r.PostForm.Get("customer_email"))
			assert.Equal(t, "aud", r.PostForm.Get("line_items[0][price_data][currency]"))
			assert.Equal(t, "19900", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
			assert.Equal(t, "Company Tax Return (2025-2026)", r.PostForm.Get("line_items[0][price_data][product_data][name]"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cs_test_abc","url":"https://checkout.stripe.com/c/pay/cs_test_abc"}`))
		}))
		defer server.Close()

		client := NewStripeClient(server.URL, "sk_test_123", "whsec_unit", time.Second)
		session, err := client.CreateCheckoutSession(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "cs_test_abc", session.ID)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", session.URL)
	})

	t.Run("SurfacesAPIErrorMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid currency: xyz","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewStripeClient(server.URL, "sk_test_123", "whsec_unit", time.Second)
		_, err := client.CreateCheckoutSession(context.Background(), input)
		require.ErrorContains(t, err, "Invalid currency: xyz")
	})
}
