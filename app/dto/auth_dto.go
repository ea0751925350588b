// Package dto contains request and response types for the HTTP API
package dto

// SignupRequest registers a new portal user
type SignupRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=8,max=100"`
	FirstName string  `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string  `json:"last_name" validate:"required,min=1,max=100"`
	Mobile    *string `json:"mobile,omitempty" validate:"omitempty,e164"`
}

// LoginRequest authenticates an existing user
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// RefreshTokenRequest exchanges a refresh token for a new session
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthUserDTO is the user shape returned by authentication endpoints
type AuthUserDTO struct {
	ID              uint    `json:"id"`
	UUID            string  `json:"uuid"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Mobile          *string `json:"mobile,omitempty"`
	IsActive        *bool   `json:"is_active"`
	IsEmailVerified *bool   `json:"is_email_verified"`
	CreatedAt       string  `json:"created_at"`
}

// SessionDTO carries the issued token pair
type SessionDTO struct {
	SessionToken string `json:"session_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	CreatedAt    string `json:"created_at"`
}

// SignupResponse is returned on successful registration
type SignupResponse struct {
	User    AuthUserDTO `json:"user"`
	Session SessionDTO  `json:"session"`

	// PendingInvitations lists partner invitations already waiting for
	// this email address at registration time.
	PendingInvitations []PartnerDTO `json:"pending_invitations,omitempty"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	User    AuthUserDTO `json:"user"`
	Session SessionDTO  `json:"session"`
}
