// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

// Partner kinds, matching the entity type of the parent account.
const (
	PartnerKindCompany     = "COMPANY"
	PartnerKindTrust       = "TRUST"
	PartnerKindPartnership = "PARTNERSHIP"
)

// Partner approval statuses
const (
	PartnerStatusPending  = "PENDING"
	PartnerStatusApproved = "APPROVED"
	PartnerStatusRejected = "REJECTED"
	PartnerStatusRemoved  = "REMOVED"
)

// Partner is a non-owner stakeholder invited onto an account: a company
// director or shareholder, a trust trustee or beneficiary, or a
// partnership partner. The three variants share one table discriminated
// by Kind; kind-specific columns are nullable.
//
// Email is stored lowercased and is unique per account, enforced by the
// composite unique index so concurrent duplicate invitations surface as
// a database conflict rather than relying on the read-then-insert check.
type Partner struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_partners_uuid" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;not null;index:idx_partners_correlation_id" json:"correlation_id"`
	AccountID     uint      `gorm:"not null;index:idx_partners_account_id;uniqueIndex:uk_partners_account_email" json:"account_id"`
	Account       Account   `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	Kind          string    `gorm:"size:20;not null;index:idx_partners_kind" json:"kind"`
	Email         string    `gorm:"size:255;not null;uniqueIndex:uk_partners_account_email" json:"email"`
	DisplayName   *string   `gorm:"size:255" json:"display_name,omitempty"`

	// Company-kind role flags
	IsDirector    *bool `json:"is_director,omitempty"`
	IsShareholder *bool `json:"is_shareholder,omitempty"`

	// Trust- and partnership-kind role descriptor
	Role *string `gorm:"size:100" json:"role,omitempty"`

	// BeneficiaryPercent applies to trust partners, OwnershipPercent to
	// partnership partners.
	BeneficiaryPercent *float64 `json:"beneficiary_percent,omitempty"`
	OwnershipPercent   *float64 `json:"ownership_percent,omitempty"`

	Status       string     `gorm:"size:20;not null;default:PENDING;index:idx_partners_status" json:"status"`
	LinkedUserID *uint      `gorm:"index:idx_partners_linked_user_id" json:"linked_user_id,omitempty"`
	LinkedUser   *User      `gorm:"foreignKey:LinkedUserID;references:ID" json:"linked_user,omitempty"`
	InvitedAt    time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"invited_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_partners_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Partner) TableName() string {
	return "partners"
}

func (p *Partner) IsPending() bool {
	return p.Status == PartnerStatusPending
}

// PartnerFilter represents filter criteria for partner queries
type PartnerFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	AccountID     *uint
	Kind          *string
	Email         *string
	Status        *string
	LinkedUserID  *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
