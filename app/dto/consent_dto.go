// Package dto contains request and response types for the HTTP API
package dto

// AcceptConsentRequest records a signed agreement against an account
type AcceptConsentRequest struct {
	AccountUUID      string `json:"account_uuid" validate:"required,uuid4"`
	ConsentType      string `json:"consent_type" validate:"required,oneof=TAX_AGENT_AUTHORITY ENGAGEMENT_LETTER TERMS_OF_SERVICE PRIVACY_POLICY"`
	DocumentVersion  string `json:"document_version" validate:"required,max=20"`
	SignaturePayload string `json:"signature_payload" validate:"required"`
	SignatureMode    string `json:"signature_mode" validate:"required,oneof=typed drawn"`
}

// ConsentDTO is the consent shape returned by the API. The signature
// payload never leaves the server.
type ConsentDTO struct {
	UUID            string `json:"uuid"`
	AccountUUID     string `json:"account_uuid"`
	ConsentType     string `json:"consent_type"`
	DocumentVersion string `json:"document_version"`
	SignatureMode   string `json:"signature_mode"`
	AcceptedAt      string `json:"accepted_at"`
}

// ConsentCheckResponse reports the account's consent position: what its
// entity type requires, what is recorded, and the gap.
type ConsentCheckResponse struct {
	AccountUUID string   `json:"account_uuid"`
	EntityType  string   `json:"entity_type"`
	Required    []string `json:"required"`
	Recorded    []string `json:"recorded"`
	Missing     []string `json:"missing"`
	HasAll      bool     `json:"has_all"`
}
