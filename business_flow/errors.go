// Package businessflow contains the core business logic and use cases for the client portal
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")

	// Admin-related errors
	ErrAdminNotFound  = errors.New("admin not found")
	ErrAdminInactive  = errors.New("admin account is inactive")
	ErrInvalidCaptcha = errors.New("invalid captcha")

	// Account-related errors
	ErrAccountNotFound          = errors.New("account not found")
	ErrAccountAccessDenied      = errors.New("account access denied")
	ErrAccountNotActive         = errors.New("account is not active")
	ErrInvalidEntityType        = errors.New("invalid entity type")
	ErrInvalidStatusTransition  = errors.New("invalid account status transition")
	ErrProfileRequired          = errors.New("profile fields are required for the entity type")
	ErrAccountHasActiveServices = errors.New("account has purchased services")

	// Partner-related errors
	ErrPartnerNotFound           = errors.New("partner not found")
	ErrPartnerEmailIsOwner       = errors.New("partner email matches the account owner")
	ErrPartnerEmailAlreadyExists = errors.New("partner email already exists for this account")
	ErrPartnerNotAddressedToYou  = errors.New("invitation is not addressed to your email")
	ErrPartnerNotPending         = errors.New("partner record is not pending")
	ErrPartnerRoleRequired       = errors.New("partner role selection is required")
	ErrPartnerKindMismatch       = errors.New("partner kind does not match the account entity type")

	// Consent-related errors
	ErrInvalidConsentType   = errors.New("invalid consent type")
	ErrSignatureRequired    = errors.New("signature payload is required")
	ErrInvalidSignatureMode = errors.New("invalid signature mode")

	// Purchase-related errors
	ErrServiceNotFound         = errors.New("service not found")
	ErrServiceInactive         = errors.New("service is inactive")
	ErrServiceNotAllowed       = errors.New("service is not available for this entity type")
	ErrServicePriceNotFound    = errors.New("no price defined for this entity type")
	ErrDuplicatePurchase       = errors.New("service already purchased for this financial year")
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrCheckoutSessionNotFound = errors.New("checkout session not found")

	// Webhook-related errors
	ErrWebhookSignatureInvalid = errors.New("webhook signature verification failed")
	ErrWebhookEventMalformed   = errors.New("webhook event payload is malformed")

	// Infrastructure errors
	ErrCacheNotAvailable = errors.New("cache not available")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsUserInactive(err error) bool {
	return errors.Is(err, ErrUserInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountAccessDenied(err error) bool {
	return errors.Is(err, ErrAccountAccessDenied)
}

func IsAccountNotActive(err error) bool {
	return errors.Is(err, ErrAccountNotActive)
}

func IsInvalidEntityType(err error) bool {
	return errors.Is(err, ErrInvalidEntityType)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsProfileRequired(err error) bool {
	return errors.Is(err, ErrProfileRequired)
}

func IsAccountHasActiveServices(err error) bool {
	return errors.Is(err, ErrAccountHasActiveServices)
}

func IsPartnerNotFound(err error) bool {
	return errors.Is(err, ErrPartnerNotFound)
}

func IsPartnerEmailIsOwner(err error) bool {
	return errors.Is(err, ErrPartnerEmailIsOwner)
}

func IsPartnerEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrPartnerEmailAlreadyExists)
}

func IsPartnerNotAddressedToYou(err error) bool {
	return errors.Is(err, ErrPartnerNotAddressedToYou)
}

func IsPartnerNotPending(err error) bool {
	return errors.Is(err, ErrPartnerNotPending)
}

func IsPartnerRoleRequired(err error) bool {
	return errors.Is(err, ErrPartnerRoleRequired)
}

func IsPartnerKindMismatch(err error) bool {
	return errors.Is(err, ErrPartnerKindMismatch)
}

func IsInvalidConsentType(err error) bool {
	return errors.Is(err, ErrInvalidConsentType)
}

func IsSignatureRequired(err error) bool {
	return errors.Is(err, ErrSignatureRequired)
}

func IsInvalidSignatureMode(err error) bool {
	return errors.Is(err, ErrInvalidSignatureMode)
}

func IsServiceNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

func IsServiceInactive(err error) bool {
	return errors.Is(err, ErrServiceInactive)
}

func IsServiceNotAllowed(err error) bool {
	return errors.Is(err, ErrServiceNotAllowed)
}

func IsServicePriceNotFound(err error) bool {
	return errors.Is(err, ErrServicePriceNotFound)
}

func IsDuplicatePurchase(err error) bool {
	return errors.Is(err, ErrDuplicatePurchase)
}

func IsPurchaseNotFound(err error) bool {
	return errors.Is(err, ErrPurchaseNotFound)
}

func IsCheckoutSessionNotFound(err error) bool {
	return errors.Is(err, ErrCheckoutSessionNotFound)
}

func IsWebhookSignatureInvalid(err error) bool {
	return errors.Is(err, ErrWebhookSignatureInvalid)
}

func IsWebhookEventMalformed(err error) bool {
	return errors.Is(err, ErrWebhookEventMalformed)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
