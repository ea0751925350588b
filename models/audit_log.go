// Package models contains domain entities and business models for the client portal
package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	User         *User           `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Action       string          `gorm:"size:100;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionSignupCompleted  = "signup_completed"
	AuditActionLoginSuccessful  = "login_successful"
	AuditActionLoginFailed      = "login_failed"
	AuditActionLogout           = "logout"
	AuditActionAdminLogin       = "admin_login"
	AuditActionAccountCreated   = "account_created"
	AuditActionAccountSubmitted = "account_submitted"
	AuditActionAccountActivated = "account_activated"
	AuditActionAccountSuspended = "account_suspended"
	AuditActionAccountClosed    = "account_closed"
	AuditActionAccountReopened  = "account_reopened"
	AuditActionAccountDeleted   = "account_deleted"
	AuditActionPartnerAdded     = "partner_added"
	AuditActionPartnerUpdated   = "partner_updated"
	AuditActionPartnerRemoved   = "partner_removed"
	AuditActionPartnerResponded = "partner_responded"
	AuditActionInvitationResent = "invitation_resent"
	AuditActionConsentAccepted  = "consent_accepted"
	AuditActionServicePurchased = "service_purchased"
	AuditActionPaymentSucceeded = "payment_succeeded"
	AuditActionPaymentFailed    = "payment_failed"
	AuditActionCheckoutExpired  = "checkout_expired"
	AuditActionSessionCreated   = "session_created"
	AuditActionSessionExpired   = "session_expired"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionLoginSuccessful:  true,
		AuditActionLoginFailed:      true,
		AuditActionAdminLogin:       true,
		AuditActionAccountSuspended: true,
		AuditActionAccountDeleted:   true,
	}
	return securityActions[a.Action]
}
