// Package models contains domain entities and business models for the client portal
package models

import (
	"encoding/json"
	"time"
)

// Webhook event processing statuses
const (
	WebhookEventStatusProcessed = "processed"
	WebhookEventStatusSkipped   = "skipped"
	WebhookEventStatusFailed    = "failed"
)

// WebhookEvent records every payment-gateway event we have seen, keyed
// by the provider-assigned event id. The unique index is what makes
// webhook processing idempotent against redelivery.
type WebhookEvent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Provider  string          `gorm:"size:50;not null;uniqueIndex:uk_webhook_events_provider_event" json:"provider"`
	EventID   string          `gorm:"size:255;not null;uniqueIndex:uk_webhook_events_provider_event" json:"event_id"`
	EventType string          `gorm:"size:100;not null;index:idx_webhook_events_type" json:"event_type"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload,omitempty"`
	Status    string          `gorm:"size:20;not null" json:"status"`
	Detail    *string         `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_webhook_events_created_at" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WebhookEventFilter represents filter criteria for webhook event queries
type WebhookEventFilter struct {
	ID            *uint
	Provider      *string
	EventID       *string
	EventType     *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
