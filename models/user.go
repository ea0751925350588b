// Package models contains domain entities and business models for the client portal
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FirstName    string    `gorm:"size:100;not null" json:"first_name"`
	LastName     string    `gorm:"size:100;not null" json:"last_name"`
	Mobile       *string   `gorm:"size:20" json:"mobile,omitempty"`

	IsActive        *bool      `gorm:"default:true;index:idx_users_is_active" json:"is_active"`
	IsEmailVerified *bool      `gorm:"default:false" json:"is_email_verified"`
	LastLoginAt     *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_users_created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Email           *string
	IsActive        *bool
	IsEmailVerified *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
