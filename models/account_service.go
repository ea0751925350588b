// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountService workflow statuses
const (
	PurchaseStatusPending         = "PENDING"
	PurchaseStatusConsentRequired = "CONSENT_REQUIRED"
	PurchaseStatusInProgress      = "IN_PROGRESS"
	PurchaseStatusReview          = "REVIEW"
	PurchaseStatusCompleted       = "COMPLETED"
	PurchaseStatusCancelled       = "CANCELLED"
)

// AccountService payment sub-states, independent of workflow status
const (
	PaymentStatusPending       = "PENDING"
	PaymentStatusPaid          = "PAID"
	PaymentStatusFailed        = "FAILED"
	PaymentStatusRefunded      = "REFUNDED"
	PaymentStatusPartialRefund = "PARTIAL_REFUND"
)

// AccountService is a purchase join row between an account and a
// catalogue service for one financial year. The composite unique index
// makes repeat purchases for the same year a database conflict.
type AccountService struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_account_services_uuid" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;not null;index:idx_account_services_correlation_id" json:"correlation_id"`
	AccountID     uint      `gorm:"not null;index:idx_account_services_account_id;uniqueIndex:uk_account_services_purchase" json:"account_id"`
	Account       Account   `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	ServiceID     uint      `gorm:"not null;index:idx_account_services_service_id;uniqueIndex:uk_account_services_purchase" json:"service_id"`
	Service       Service   `gorm:"foreignKey:ServiceID;references:ID" json:"service,omitempty"`
	FinancialYear string    `gorm:"size:9;not null;uniqueIndex:uk_account_services_purchase" json:"financial_year"`

	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"size:3;not null;default:AUD" json:"currency"`

	Status        string `gorm:"size:20;not null;default:PENDING;index:idx_account_services_status" json:"status"`
	PaymentStatus string `gorm:"size:20;not null;default:PENDING;index:idx_account_services_payment_status" json:"payment_status"`

	// Provider-assigned checkout session id, used to correlate webhook
	// events back to the purchase.
	CheckoutSessionID *string `gorm:"size:255;index:idx_account_services_checkout_session" json:"checkout_session_id,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_account_services_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AccountService) TableName() string {
	return "account_services"
}

func (as *AccountService) IsPaid() bool {
	return as.PaymentStatus == PaymentStatusPaid
}

// AccountServiceFilter represents filter criteria for purchase queries
type AccountServiceFilter struct {
	ID                *uint
	UUID              *uuid.UUID
	AccountID         *uint
	ServiceID         *uint
	FinancialYear     *string
	Status            *string
	PaymentStatus     *string
	CheckoutSessionID *string
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}
