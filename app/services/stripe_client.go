// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeProviderName is the provider key recorded on webhook events
const StripeProviderName = "stripe"

// CheckoutSessionInput describes the purchase a checkout session is
// created for.
type CheckoutSessionInput struct {
	PurchaseUUID  string
	ServiceName   string
	FinancialYear string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the gateway's created session
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeClient talks to the Stripe REST API and verifies webhook
// signatures.
type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	VerifyWebhookSignature(payload []byte, sigHeader string, tolerance time.Duration) error
}

type StripeClientImpl struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	HTTPClient    *http.Client
}

func NewStripeClient(baseURL, secretKey, webhookSecret string, timeout time.Duration) StripeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeClientImpl{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession creates a hosted checkout session for a single
// line item priced in cents.
func (c *StripeClientImpl) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", in.PurchaseUUID)
	form.Set("customer_email", in.CustomerEmail)
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]",
		fmt.Sprintf("%s (%s)", in.ServiceName, in.FinancialYear))

	endpoint := c.BaseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("stripe checkout session failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the
// raw payload. The header carries a timestamp and one or more v1
// signatures: HMAC-SHA256 of "<timestamp>.<payload>" keyed with the
// endpoint's webhook secret. Timestamps older than tolerance are
// rejected to limit replay.
func (c *StripeClientImpl) VerifyWebhookSignature(payload []byte, sigHeader string, tolerance time.Duration) error {
	if sigHeader == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp")
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

// SignWebhookPayload produces a Stripe-Signature header value for the
// payload, used by tests and local tooling.
func SignWebhookPayload(secret string, payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
