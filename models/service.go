// Package models contains domain entities and business models for the client portal
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is a catalogue entry users purchase against an account.
// AllowedEntityTypes is a comma-separated list of account entity types
// the service may be purchased for; pricing per entity type lives in
// ServicePrice rows.
type Service struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_services_uuid" json:"uuid"`
	Code               string    `gorm:"size:100;not null;uniqueIndex:uk_services_code" json:"code"`
	Name               string    `gorm:"size:255;not null" json:"name"`
	Description        *string   `gorm:"type:text" json:"description,omitempty"`
	AllowedEntityTypes string    `gorm:"size:255;not null" json:"allowed_entity_types"`
	RequiresConsent    *bool     `gorm:"default:true" json:"requires_consent"`
	IsActive           *bool     `gorm:"default:true;index:idx_services_is_active" json:"is_active"`

	Prices []ServicePrice `gorm:"foreignKey:ServiceID" json:"prices,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Service) TableName() string {
	return "services"
}

// AllowsEntityType reports whether the service may be purchased for
// the given account entity type.
func (s *Service) AllowsEntityType(entityType string) bool {
	for _, t := range strings.Split(s.AllowedEntityTypes, ",") {
		if strings.TrimSpace(t) == entityType {
			return true
		}
	}
	return false
}

// AllowedEntityTypeList splits AllowedEntityTypes into its entries.
func (s *Service) AllowedEntityTypeList() []string {
	var out []string
	for _, t := range strings.Split(s.AllowedEntityTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PriceFor returns the price row for the given entity type, or nil when
// no price is defined.
func (s *Service) PriceFor(entityType string) *ServicePrice {
	for i := range s.Prices {
		if s.Prices[i].EntityType == entityType {
			return &s.Prices[i]
		}
	}
	return nil
}

// ServiceFilter represents filter criteria for service queries
type ServiceFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Code     *string
	IsActive *bool
}

// ServicePrice is the per-entity-type price of a service. Amounts are
// stored in cents to avoid floating-point money.
type ServicePrice struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ServiceID   uint      `gorm:"not null;uniqueIndex:uk_service_prices_service_type" json:"service_id"`
	EntityType  string    `gorm:"size:20;not null;uniqueIndex:uk_service_prices_service_type" json:"entity_type"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"size:3;not null;default:AUD" json:"currency"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ServicePrice) TableName() string {
	return "service_prices"
}

// ServicePriceFilter represents filter criteria for price queries
type ServicePriceFilter struct {
	ID         *uint
	ServiceID  *uint
	EntityType *string
}
