// Package models contains domain entities and business models for the client portal
package models

import "time"

// IndividualProfile is the sub-record attached to INDIVIDUAL accounts.
type IndividualProfile struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   uint       `gorm:"not null;uniqueIndex:uk_individual_profiles_account_id" json:"account_id"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100;not null" json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	TFN         *string    `gorm:"size:11" json:"-"` // Never serialize the tax file number
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (IndividualProfile) TableName() string {
	return "individual_profiles"
}

// CompanyProfile is the sub-record attached to COMPANY accounts.
type CompanyProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;uniqueIndex:uk_company_profiles_account_id" json:"account_id"`
	CompanyName string    `gorm:"size:255;not null" json:"company_name"`
	ACN         *string   `gorm:"size:9" json:"acn,omitempty"`
	ABN         *string   `gorm:"size:11" json:"abn,omitempty"`
	TFN         *string   `gorm:"size:11" json:"-"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CompanyProfile) TableName() string {
	return "company_profiles"
}

// TrustProfile is the sub-record attached to TRUST accounts.
type TrustProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;uniqueIndex:uk_trust_profiles_account_id" json:"account_id"`
	TrustName   string    `gorm:"size:255;not null" json:"trust_name"`
	TrusteeName *string   `gorm:"size:255" json:"trustee_name,omitempty"`
	ABN         *string   `gorm:"size:11" json:"abn,omitempty"`
	TFN         *string   `gorm:"size:11" json:"-"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TrustProfile) TableName() string {
	return "trust_profiles"
}

// PartnershipProfile is the sub-record attached to PARTNERSHIP accounts.
type PartnershipProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AccountID       uint      `gorm:"not null;uniqueIndex:uk_partnership_profiles_account_id" json:"account_id"`
	PartnershipName string    `gorm:"size:255;not null" json:"partnership_name"`
	ABN             *string   `gorm:"size:11" json:"abn,omitempty"`
	TFN             *string   `gorm:"size:11" json:"-"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PartnershipProfile) TableName() string {
	return "partnership_profiles"
}
