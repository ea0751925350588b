// Package dto contains request and response types for the HTTP API
package dto

// AddCompanyPartnerRequest invites a director/shareholder onto a COMPANY account
type AddCompanyPartnerRequest struct {
	AccountUUID   string  `json:"account_uuid" validate:"required,uuid4"`
	Email         string  `json:"email" validate:"required,email,max=255"`
	DisplayName   *string `json:"display_name,omitempty" validate:"omitempty,max=255"`
	IsDirector    *bool   `json:"is_director,omitempty"`
	IsShareholder *bool   `json:"is_shareholder,omitempty"`
}

// AddTrustPartnerRequest invites a trustee/beneficiary onto a TRUST account
type AddTrustPartnerRequest struct {
	AccountUUID        string   `json:"account_uuid" validate:"required,uuid4"`
	Email              string   `json:"email" validate:"required,email,max=255"`
	DisplayName        *string  `json:"display_name,omitempty" validate:"omitempty,max=255"`
	Role               string   `json:"role" validate:"required,oneof=trustee beneficiary"`
	BeneficiaryPercent *float64 `json:"beneficiary_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// AddPartnershipPartnerRequest invites a partner onto a PARTNERSHIP account
type AddPartnershipPartnerRequest struct {
	AccountUUID      string   `json:"account_uuid" validate:"required,uuid4"`
	Email            string   `json:"email" validate:"required,email,max=255"`
	DisplayName      *string  `json:"display_name,omitempty" validate:"omitempty,max=255"`
	Role             *string  `json:"role,omitempty" validate:"omitempty,max=100"`
	OwnershipPercent *float64 `json:"ownership_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdatePartnerRequest is an owner-side edit of a partner record. A
// changed email re-triggers invitation dispatch.
type UpdatePartnerRequest struct {
	Email              *string  `json:"email,omitempty" validate:"omitempty,email,max=255"`
	DisplayName        *string  `json:"display_name,omitempty" validate:"omitempty,max=255"`
	IsDirector         *bool    `json:"is_director,omitempty"`
	IsShareholder      *bool    `json:"is_shareholder,omitempty"`
	Role               *string  `json:"role,omitempty" validate:"omitempty,max=100"`
	BeneficiaryPercent *float64 `json:"beneficiary_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	OwnershipPercent   *float64 `json:"ownership_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Invitation response actions
const (
	InvitationActionApprove = "approve"
	InvitationActionReject  = "reject"
)

// RespondInvitationRequest is the invitee's answer to a pending invitation
type RespondInvitationRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// PartnerDTO is the partner shape returned by the API
type PartnerDTO struct {
	UUID               string   `json:"uuid"`
	AccountUUID        string   `json:"account_uuid"`
	Kind               string   `json:"kind"`
	Email              string   `json:"email"`
	DisplayName        *string  `json:"display_name,omitempty"`
	IsDirector         *bool    `json:"is_director,omitempty"`
	IsShareholder      *bool    `json:"is_shareholder,omitempty"`
	Role               *string  `json:"role,omitempty"`
	BeneficiaryPercent *float64 `json:"beneficiary_percent,omitempty"`
	OwnershipPercent   *float64 `json:"ownership_percent,omitempty"`
	Status             string   `json:"status"`
	LinkedUserID       *uint    `json:"linked_user_id,omitempty"`
	InvitedAt          string   `json:"invited_at"`
	RespondedAt        string   `json:"responded_at,omitempty"`
}

// AddPartnerResponse reports the created record and whether the invitee
// already has a portal user, so the UI can tailor its success message.
type AddPartnerResponse struct {
	Partner          PartnerDTO `json:"partner"`
	ExistingUser     bool       `json:"existing_user"`
	ExistingUserName string     `json:"existing_user_name,omitempty"`
}

// PartnerListResponse wraps an account's partner records
type PartnerListResponse struct {
	Partners []PartnerDTO `json:"partners"`
}

// CheckPartnerEmailResponse reports whether an email already belongs to a
// registered user and whether it is already invited on the account.
type CheckPartnerEmailResponse struct {
	RegisteredUser  bool   `json:"registered_user"`
	AlreadyInvited  bool   `json:"already_invited"`
	RegisteredName  string `json:"registered_name,omitempty"`
	NormalizedEmail string `json:"normalized_email"`
}
