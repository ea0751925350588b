// Package dto contains request and response types for the HTTP API
package dto

// PurchaseRequest buys a catalogue service for an account. FinancialYear
// defaults to the current Australian financial year when omitted.
type PurchaseRequest struct {
	AccountUUID   string  `json:"account_uuid" validate:"required,uuid4"`
	ServiceCode   string  `json:"service_code" validate:"required,max=100"`
	FinancialYear *string `json:"financial_year,omitempty" validate:"omitempty,len=9"`
}

// ServicePriceDTO is one per-entity-type price of a catalogue service
type ServicePriceDTO struct {
	EntityType  string `json:"entity_type"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// ServiceDTO is the catalogue entry shape returned by the API
type ServiceDTO struct {
	UUID               string            `json:"uuid"`
	Code               string            `json:"code"`
	Name               string            `json:"name"`
	Description        *string           `json:"description,omitempty"`
	AllowedEntityTypes []string          `json:"allowed_entity_types"`
	RequiresConsent    *bool             `json:"requires_consent"`
	Prices             []ServicePriceDTO `json:"prices"`
}

// ServiceListResponse wraps the active catalogue
type ServiceListResponse struct {
	Services []ServiceDTO `json:"services"`
}

// PurchaseDTO is the purchase shape returned by the API
type PurchaseDTO struct {
	UUID          string `json:"uuid"`
	AccountUUID   string `json:"account_uuid"`
	ServiceCode   string `json:"service_code"`
	ServiceName   string `json:"service_name"`
	FinancialYear string `json:"financial_year"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaidAt        string `json:"paid_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// PurchaseResponse reports the created purchase and the gateway checkout
// URL the client should redirect to.
type PurchaseResponse struct {
	Purchase        PurchaseDTO `json:"purchase"`
	CheckoutURL     string      `json:"checkout_url,omitempty"`
	MissingConsents []string    `json:"missing_consents,omitempty"`
}

// PurchaseListResponse wraps an account's purchases
type PurchaseListResponse struct {
	Purchases []PurchaseDTO `json:"purchases"`
}

// StripeWebhookEvent is the subset of the gateway event envelope the
// portal consumes.
type StripeWebhookEvent struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Created int64                  `json:"created"`
	Data    StripeWebhookEventData `json:"data"`
}

// StripeWebhookEventData wraps the event's primary object
type StripeWebhookEventData struct {
	Object StripeCheckoutSession `json:"object"`
}

// StripeCheckoutSession is the checkout-session object carried by the
// events the portal handles.
type StripeCheckoutSession struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}
