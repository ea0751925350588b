// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

// Consent types
const (
	ConsentTypeTaxAgentAuthority = "TAX_AGENT_AUTHORITY"
	ConsentTypeEngagementLetter  = "ENGAGEMENT_LETTER"
	ConsentTypeTermsOfService    = "TERMS_OF_SERVICE"
	ConsentTypePrivacyPolicy     = "PRIVACY_POLICY"
)

// Signature capture modes
const (
	SignatureModeTyped = "typed"
	SignatureModeDrawn = "drawn"
)

// LegalConsent is an immutable audit record of a signed agreement.
// Rows are append-only: re-signing a consent type inserts a new row,
// nothing is ever updated or deleted through normal flow.
type LegalConsent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_consents_uuid" json:"uuid"`
	AccountID       uint      `gorm:"not null;index:idx_consents_account_id" json:"account_id"`
	Account         Account   `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	UserID          uint      `gorm:"not null;index:idx_consents_user_id" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	ConsentType     string    `gorm:"size:50;not null;index:idx_consents_type" json:"consent_type"`
	DocumentVersion string    `gorm:"size:20;not null" json:"document_version"`

	// Signature payload: the typed full name or a drawn-image data URI,
	// depending on SignatureMode.
	SignaturePayload string `gorm:"type:text;not null" json:"-"`
	SignatureMode    string `gorm:"size:10;not null" json:"signature_mode"`

	IPAddress  *string   `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent  *string   `gorm:"type:text" json:"user_agent,omitempty"`
	AcceptedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_consents_accepted_at" json:"accepted_at"`
}

func (LegalConsent) TableName() string {
	return "legal_consents"
}

// LegalConsentFilter represents filter criteria for consent queries
type LegalConsentFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	AccountID      *uint
	UserID         *uint
	ConsentType    *string
	AcceptedAfter  *time.Time
	AcceptedBefore *time.Time
}
