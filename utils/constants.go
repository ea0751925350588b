package utils

import (
	"time"
)

type contextKey string

// Context keys carried from the HTTP layer into business flows for
// audit logging and request tracing.
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour

	// InvitationTokenTTL is the time-to-live for partner invitation links (14 days)
	InvitationTokenTTL = 14 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Billing constants
const (
	// AUDCurrency is the ISO currency code all service prices are quoted in
	AUDCurrency = "AUD"

	// GSTRate is the goods-and-services tax rate applied to service prices (10%)
	GSTRate = 0.10
)
