// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

// Outbox entry statuses
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
	OutboxStatusDead    = "dead"
)

// Notification kinds dispatched through the outbox
const (
	NotificationKindPartnerApprovalRequest = "partner_approval_request"
	NotificationKindPartnerRegisterInvite  = "partner_register_invite"
	NotificationKindPurchaseReceipt        = "purchase_receipt"
	NotificationKindConsentReceipt         = "consent_receipt"
)

// MaxOutboxAttempts is the delivery attempt ceiling before an entry is
// marked dead.
const MaxOutboxAttempts = 5

// NotificationOutbox is a persisted email awaiting delivery. Entries are
// written in the same transaction as the mutation that caused them, then
// drained by the background dispatcher with retry and backoff, so a
// crash between mutation and send never loses the notification.
type NotificationOutbox struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_outbox_uuid" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;not null;index:idx_outbox_correlation_id" json:"correlation_id"`
	Kind          string    `gorm:"size:50;not null;index:idx_outbox_kind" json:"kind"`
	Recipient     string    `gorm:"size:255;not null" json:"recipient"`
	Subject       string    `gorm:"size:500;not null" json:"subject"`
	BodyHTML      string    `gorm:"type:text;not null" json:"-"`
	BodyText      string    `gorm:"type:text;not null" json:"-"`

	Status        string     `gorm:"size:20;not null;default:pending;index:idx_outbox_status" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"not null;index:idx_outbox_next_attempt_at" json:"next_attempt_at"`
	LastError     *string    `gorm:"type:text" json:"last_error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_outbox_created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}

// NotificationOutboxFilter represents filter criteria for outbox queries
type NotificationOutboxFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Kind          *string
	Status        *string
	Recipient     *string
	DueBefore     *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
