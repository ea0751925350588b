// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ConsentHandler handles legal consent endpoints
type ConsentHandler struct {
	consentFlow  businessflow.ConsentFlow
	purchaseFlow businessflow.PurchaseFlow
	validator    *validator.Validate
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(consentFlow businessflow.ConsentFlow, purchaseFlow businessflow.PurchaseFlow) *ConsentHandler {
	return &ConsentHandler{
		consentFlow:  consentFlow,
		purchaseFlow: purchaseFlow,
		validator:    validator.New(),
	}
}

// Accept records a signed consent document against an account
func (h *ConsentHandler) Accept(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.AcceptConsentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	ctx := requestContext(c, "/api/v1/consents")
	result, err := h.consentFlow.Accept(ctx, userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapConsentError(c, err, "Failed to record consent", "CONSENT_ACCEPT_FAILED")
	}

	// Completing the consent set may unblock purchases that were gated
	// on it. Promotion failures are logged, not surfaced: the consent
	// itself is already recorded.
	if err := h.purchaseFlow.PromoteConsentGated(ctx, userID, req.AccountUUID); err != nil {
		log.Println("Consent-gated purchase promotion failed", err)
	}

	return successResponse(c, fiber.StatusCreated, "Consent recorded", result)
}

// Check reports required vs recorded consents for an account
func (h *ConsentHandler) Check(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.consentFlow.Check(requestContext(c, "/api/v1/accounts/:uuid/consents/check"), userID, c.Params("uuid"))
	if err != nil {
		return h.mapConsentError(c, err, "Failed to check consents", "CONSENT_CHECK_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Consent status retrieved", result)
}

// List returns all recorded consents on an account
func (h *ConsentHandler) List(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.consentFlow.List(requestContext(c, "/api/v1/accounts/:uuid/consents"), userID, c.Params("uuid"))
	if err != nil {
		return h.mapConsentError(c, err, "Failed to list consents", "CONSENT_LIST_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Consents retrieved", result)
}

func (h *ConsentHandler) mapConsentError(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsAccountAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, "Account does not belong to you", "ACCOUNT_ACCESS_DENIED", nil)
	case businessflow.IsInvalidConsentType(err):
		return errorResponse(c, fiber.StatusBadRequest, "Consent type is not recognised", "INVALID_CONSENT_TYPE", nil)
	case businessflow.IsSignatureRequired(err):
		return errorResponse(c, fiber.StatusBadRequest, "A signature payload is required", "SIGNATURE_REQUIRED", nil)
	case businessflow.IsInvalidSignatureMode(err):
		return errorResponse(c, fiber.StatusBadRequest, "Signature mode must be typed or drawn", "INVALID_SIGNATURE_MODE", nil)
	}
	log.Println(fallbackMsg, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
}
