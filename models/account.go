// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

// Account entity types
const (
	AccountTypeIndividual  = "INDIVIDUAL"
	AccountTypeCompany     = "COMPANY"
	AccountTypeTrust       = "TRUST"
	AccountTypePartnership = "PARTNERSHIP"
)

// Account lifecycle statuses
const (
	AccountStatusDraft     = "DRAFT"
	AccountStatusPending   = "PENDING"
	AccountStatusActive    = "ACTIVE"
	AccountStatusSuspended = "SUSPENDED"
	AccountStatusClosed    = "CLOSED"
)

// ValidAccountTypes lists every supported tax-entity type.
var ValidAccountTypes = []string{
	AccountTypeIndividual,
	AccountTypeCompany,
	AccountTypeTrust,
	AccountTypePartnership,
}

func IsValidAccountType(t string) bool {
	for _, v := range ValidAccountTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Account is a tax entity owned by a user. Exactly one profile sub-record
// matching EntityType exists per account.
type Account struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_accounts_uuid" json:"uuid"`
	UserID     uint      `gorm:"not null;index:idx_accounts_user_id" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	EntityType string    `gorm:"size:20;not null;index:idx_accounts_entity_type" json:"entity_type"`
	Status     string    `gorm:"size:20;not null;default:DRAFT;index:idx_accounts_status" json:"status"`
	IsDefault  *bool     `gorm:"default:false" json:"is_default"`

	IndividualProfile  *IndividualProfile  `gorm:"foreignKey:AccountID" json:"individual_profile,omitempty"`
	CompanyProfile     *CompanyProfile     `gorm:"foreignKey:AccountID" json:"company_profile,omitempty"`
	TrustProfile       *TrustProfile       `gorm:"foreignKey:AccountID" json:"trust_profile,omitempty"`
	PartnershipProfile *PartnershipProfile `gorm:"foreignKey:AccountID" json:"partnership_profile,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// DisplayName derives a human-readable name from whichever profile
// is attached.
func (a *Account) DisplayName() string {
	switch a.EntityType {
	case AccountTypeIndividual:
		if a.IndividualProfile != nil {
			return a.IndividualProfile.FirstName + " " + a.IndividualProfile.LastName
		}
	case AccountTypeCompany:
		if a.CompanyProfile != nil {
			return a.CompanyProfile.CompanyName
		}
	case AccountTypeTrust:
		if a.TrustProfile != nil {
			return a.TrustProfile.TrustName
		}
	case AccountTypePartnership:
		if a.PartnershipProfile != nil {
			return a.PartnershipProfile.PartnershipName
		}
	}
	return ""
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	UserID        *uint
	EntityType    *string
	Status        *string
	IsDefault     *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
