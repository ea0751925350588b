// Package dto contains request and response types for the HTTP API
package dto

// IndividualProfilePayload carries profile fields for INDIVIDUAL accounts
type IndividualProfilePayload struct {
	FirstName   string  `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string  `json:"last_name" validate:"required,min=1,max=100"`
	DateOfBirth *string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TFN         *string `json:"tfn,omitempty" validate:"omitempty,numeric,min=8,max=9"`
}

// CompanyProfilePayload carries profile fields for COMPANY accounts
type CompanyProfilePayload struct {
	CompanyName string  `json:"company_name" validate:"required,min=1,max=255"`
	ACN         *string `json:"acn,omitempty" validate:"omitempty,numeric,len=9"`
	ABN         *string `json:"abn,omitempty" validate:"omitempty,numeric,len=11"`
	TFN         *string `json:"tfn,omitempty" validate:"omitempty,numeric,min=8,max=9"`
}

// TrustProfilePayload carries profile fields for TRUST accounts
type TrustProfilePayload struct {
	TrustName   string  `json:"trust_name" validate:"required,min=1,max=255"`
	TrusteeName *string `json:"trustee_name,omitempty" validate:"omitempty,max=255"`
	ABN         *string `json:"abn,omitempty" validate:"omitempty,numeric,len=11"`
	TFN         *string `json:"tfn,omitempty" validate:"omitempty,numeric,min=8,max=9"`
}

// PartnershipProfilePayload carries profile fields for PARTNERSHIP accounts
type PartnershipProfilePayload struct {
	PartnershipName string  `json:"partnership_name" validate:"required,min=1,max=255"`
	ABN             *string `json:"abn,omitempty" validate:"omitempty,numeric,len=11"`
	TFN             *string `json:"tfn,omitempty" validate:"omitempty,numeric,min=8,max=9"`
}

// CreateAccountRequest creates a tax-entity account in DRAFT. Exactly one
// profile payload must be set and it must match EntityType.
type CreateAccountRequest struct {
	EntityType  string                     `json:"entity_type" validate:"required,oneof=INDIVIDUAL COMPANY TRUST PARTNERSHIP"`
	IsDefault   *bool                      `json:"is_default,omitempty"`
	Individual  *IndividualProfilePayload  `json:"individual,omitempty"`
	Company     *CompanyProfilePayload     `json:"company,omitempty"`
	Trust       *TrustProfilePayload       `json:"trust,omitempty"`
	Partnership *PartnershipProfilePayload `json:"partnership,omitempty"`
}

// UpdateAccountRequest patches the profile of a DRAFT or ACTIVE account
type UpdateAccountRequest struct {
	IsDefault   *bool                      `json:"is_default,omitempty"`
	Individual  *IndividualProfilePayload  `json:"individual,omitempty"`
	Company     *CompanyProfilePayload     `json:"company,omitempty"`
	Trust       *TrustProfilePayload       `json:"trust,omitempty"`
	Partnership *PartnershipProfilePayload `json:"partnership,omitempty"`
}

// AccountDTO is the account shape returned by the API. TFNs and ABNs are
// masked before they leave the server.
type AccountDTO struct {
	UUID        string             `json:"uuid"`
	EntityType  string             `json:"entity_type"`
	Status      string             `json:"status"`
	DisplayName string             `json:"display_name"`
	IsDefault   bool               `json:"is_default"`
	Profile     *AccountProfileDTO `json:"profile,omitempty"`
	SubmittedAt *string            `json:"submitted_at,omitempty"`
	ActivatedAt *string            `json:"activated_at,omitempty"`
	ClosedAt    *string            `json:"closed_at,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

// AccountProfileDTO flattens the per-entity-type profile for responses;
// only the fields relevant to the entity type are populated.
type AccountProfileDTO struct {
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	DateOfBirth     *string `json:"date_of_birth,omitempty"`
	CompanyName     *string `json:"company_name,omitempty"`
	ACN             *string `json:"acn,omitempty"`
	TrustName       *string `json:"trust_name,omitempty"`
	TrusteeName     *string `json:"trustee_name,omitempty"`
	PartnershipName *string `json:"partnership_name,omitempty"`
	MaskedABN       *string `json:"masked_abn,omitempty"`
	MaskedTFN       *string `json:"masked_tfn,omitempty"`
}

// AccountListResponse wraps a user's accounts
type AccountListResponse struct {
	Accounts []AccountDTO `json:"accounts"`
}
