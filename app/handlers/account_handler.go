// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AccountHandler handles tax-entity account endpoints
type AccountHandler struct {
	accountFlow businessflow.AccountFlow
	validator   *validator.Validate
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountFlow businessflow.AccountFlow) *AccountHandler {
	return &AccountHandler{
		accountFlow: accountFlow,
		validator:   validator.New(),
	}
}

// Create opens a new account in DRAFT
func (h *AccountHandler) Create(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.CreateAccountRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.accountFlow.Create(requestContext(c, "/api/v1/accounts"), userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapAccountError(c, err, "Account creation failed", "ACCOUNT_CREATE_FAILED")
	}
	return successResponse(c, fiber.StatusCreated, "Account created", result)
}

// List returns all accounts of the authenticated user
func (h *AccountHandler) List(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.accountFlow.List(requestContext(c, "/api/v1/accounts"), userID)
	if err != nil {
		log.Println("Account list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list accounts", "ACCOUNT_LIST_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Accounts retrieved", result)
}

// Get returns one account by UUID
func (h *AccountHandler) Get(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.accountFlow.Get(requestContext(c, "/api/v1/accounts/:uuid"), userID, c.Params("uuid"))
	if err != nil {
		return h.mapAccountError(c, err, "Failed to get account", "ACCOUNT_GET_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Account retrieved", result)
}

// Update patches an account's profile or default flag
func (h *AccountHandler) Update(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.UpdateAccountRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.accountFlow.Update(requestContext(c, "/api/v1/accounts/:uuid"), userID, c.Params("uuid"), &req, clientMetadata(c))
	if err != nil {
		return h.mapAccountError(c, err, "Account update failed", "ACCOUNT_UPDATE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Account updated", result)
}

// Submit moves a DRAFT account to PENDING review
func (h *AccountHandler) Submit(c fiber.Ctx) error {
	return h.lifecycle(c, "/api/v1/accounts/:uuid/submit", "Account submitted", h.accountFlow.Submit)
}

// Close moves an account to CLOSED
func (h *AccountHandler) Close(c fiber.Ctx) error {
	return h.lifecycle(c, "/api/v1/accounts/:uuid/close", "Account closed", h.accountFlow.Close)
}

// Reopen restores a CLOSED account to ACTIVE
func (h *AccountHandler) Reopen(c fiber.Ctx) error {
	return h.lifecycle(c, "/api/v1/accounts/:uuid/reopen", "Account reopened", h.accountFlow.Reopen)
}

// Delete hard-deletes an account
func (h *AccountHandler) Delete(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	err := h.accountFlow.Delete(requestContext(c, "/api/v1/accounts/:uuid"), userID, c.Params("uuid"), clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountHasActiveServices(err) {
			return errorResponse(c, fiber.StatusConflict, "Account has services in progress", "ACCOUNT_HAS_ACTIVE_SERVICES", nil)
		}
		return h.mapAccountError(c, err, "Account deletion failed", "ACCOUNT_DELETE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Account deleted", nil)
}

type accountLifecycleFunc func(ctx context.Context, userID uint, accountUUID string, metadata *businessflow.ClientMetadata) (*dto.AccountDTO, error)

func (h *AccountHandler) lifecycle(c fiber.Ctx, endpoint, successMsg string, fn accountLifecycleFunc) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := fn(requestContext(c, endpoint), userID, c.Params("uuid"), clientMetadata(c))
	if err != nil {
		return h.mapAccountError(c, err, "Account status change failed", "ACCOUNT_STATUS_UPDATE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, successMsg, result)
}

func (h *AccountHandler) mapAccountError(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsAccountAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, "Account does not belong to you", "ACCOUNT_ACCESS_DENIED", nil)
	case businessflow.IsInvalidEntityType(err):
		return errorResponse(c, fiber.StatusBadRequest, "Unsupported entity type", "INVALID_ENTITY_TYPE", nil)
	case businessflow.IsInvalidStatusTransition(err):
		return errorResponse(c, fiber.StatusConflict, "Invalid account status for this operation", "INVALID_STATUS_TRANSITION", nil)
	case businessflow.IsProfileRequired(err):
		return errorResponse(c, fiber.StatusBadRequest, "Account profile is incomplete", "PROFILE_REQUIRED", nil)
	}
	log.Println(fallbackMsg, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
}
