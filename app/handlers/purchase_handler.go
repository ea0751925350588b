// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// PurchaseHandler handles service catalogue and purchase endpoints
type PurchaseHandler struct {
	purchaseFlow businessflow.PurchaseFlow
	validator    *validator.Validate
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(purchaseFlow businessflow.PurchaseFlow) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseFlow: purchaseFlow,
		validator:    validator.New(),
	}
}

// ListServices returns the active service catalogue
func (h *PurchaseHandler) ListServices(c fiber.Ctx) error {
	result, err := h.purchaseFlow.ListServices(requestContext(c, "/api/v1/services"))
	if err != nil {
		log.Println("Service list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list services", "SERVICE_LIST_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Services retrieved", result)
}

// Purchase starts a service purchase against an account
func (h *PurchaseHandler) Purchase(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.PurchaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.purchaseFlow.Purchase(requestContext(c, "/api/v1/purchases"), userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapPurchaseError(c, err, "Failed to purchase service", "PURCHASE_FAILED")
	}
	return successResponse(c, fiber.StatusCreated, "Purchase created", result)
}

// ListByAccount lists an account's purchases
func (h *PurchaseHandler) ListByAccount(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.purchaseFlow.ListByAccount(requestContext(c, "/api/v1/accounts/:uuid/purchases"), userID, c.Params("uuid"))
	if err != nil {
		return h.mapPurchaseError(c, err, "Failed to list purchases", "PURCHASE_LIST_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Purchases retrieved", result)
}

// StripeWebhook receives payment gateway events. The raw body is passed
// through untouched because the signature covers the exact bytes sent.
func (h *PurchaseHandler) StripeWebhook(c fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	err := h.purchaseFlow.HandleStripeWebhook(requestContext(c, "/api/v1/payments/stripe/webhook"), payload, sigHeader)
	if err != nil {
		switch {
		case businessflow.IsWebhookSignatureInvalid(err):
			return errorResponse(c, fiber.StatusBadRequest, "Webhook signature verification failed", "WEBHOOK_SIGNATURE_INVALID", nil)
		case businessflow.IsWebhookEventMalformed(err):
			return errorResponse(c, fiber.StatusBadRequest, "Webhook payload is malformed", "WEBHOOK_EVENT_MALFORMED", nil)
		}
		log.Println("Webhook processing failed", err)
		// Non-2xx makes the gateway retry, which is what we want for
		// transient storage failures.
		return errorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", "WEBHOOK_PROCESSING_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Webhook processed", nil)
}

func (h *PurchaseHandler) mapPurchaseError(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsAccountAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, "Account does not belong to you", "ACCOUNT_ACCESS_DENIED", nil)
	case businessflow.IsAccountNotActive(err):
		return errorResponse(c, fiber.StatusConflict, "Account must be active to purchase services", "ACCOUNT_NOT_ACTIVE", nil)
	case businessflow.IsServiceNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Service not found", "SERVICE_NOT_FOUND", nil)
	case businessflow.IsServiceInactive(err):
		return errorResponse(c, fiber.StatusConflict, "Service is no longer available", "SERVICE_INACTIVE", nil)
	case businessflow.IsServiceNotAllowed(err):
		return errorResponse(c, fiber.StatusBadRequest, "Service is not available for this entity type", "SERVICE_NOT_ALLOWED", nil)
	case businessflow.IsServicePriceNotFound(err):
		return errorResponse(c, fiber.StatusBadRequest, "Service has no price for this entity type", "SERVICE_PRICE_NOT_FOUND", nil)
	case businessflow.IsDuplicatePurchase(err):
		return errorResponse(c, fiber.StatusConflict, "Service already purchased for this financial year", "DUPLICATE_PURCHASE", nil)
	}
	log.Println(fallbackMsg, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
}
