// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AdminHandler handles back-office endpoints: purchase management,
// XLSX export and account activation/suspension.
type AdminHandler struct {
	adminPurchaseFlow businessflow.AdminPurchaseFlow
	accountFlow       businessflow.AccountFlow
	validator         *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminPurchaseFlow businessflow.AdminPurchaseFlow, accountFlow businessflow.AccountFlow) *AdminHandler {
	return &AdminHandler{
		adminPurchaseFlow: adminPurchaseFlow,
		accountFlow:       accountFlow,
		validator:         validator.New(),
	}
}

// ListPurchases returns a filtered, paginated view over all purchases
func (h *AdminHandler) ListPurchases(c fiber.Ctx) error {
	var req dto.AdminPurchaseListRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.adminPurchaseFlow.List(requestContext(c, "/api/v1/admin/purchases"), &req)
	if err != nil {
		log.Println("Admin purchase list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list purchases", "ADMIN_PURCHASE_LIST_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Purchases retrieved", result)
}

// UpdatePurchaseStatus advances a purchase through its workflow
func (h *AdminHandler) UpdatePurchaseStatus(c fiber.Ctx) error {
	var req dto.AdminUpdatePurchaseStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.adminPurchaseFlow.UpdateStatus(requestContext(c, "/api/v1/admin/purchases/:uuid/status"), c.Params("uuid"), &req)
	if err != nil {
		switch {
		case businessflow.IsPurchaseNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Purchase not found", "PURCHASE_NOT_FOUND", nil)
		case businessflow.IsInvalidStatusTransition(err):
			return errorResponse(c, fiber.StatusConflict, "Status transition not allowed", "INVALID_STATUS_TRANSITION", nil)
		}
		log.Println("Admin purchase status update failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to update purchase", "ADMIN_PURCHASE_UPDATE_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Purchase updated", result)
}

// ExportPurchases streams the filtered purchase listing as an XLSX file
func (h *AdminHandler) ExportPurchases(c fiber.Ctx) error {
	var req dto.AdminPurchaseListRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	filename, data, err := h.adminPurchaseFlow.ExportXLSX(requestContext(c, "/api/v1/admin/purchases/export"), &req)
	if err != nil {
		log.Println("Admin purchase export failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to export purchases", "ADMIN_PURCHASE_EXPORT_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// ListAccounts returns a filtered, paginated view over all accounts
func (h *AdminHandler) ListAccounts(c fiber.Ctx) error {
	var req dto.AdminAccountListRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.accountFlow.AdminList(requestContext(c, "/api/v1/admin/accounts"), &req)
	if err != nil {
		log.Println("Admin account list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list accounts", "ADMIN_ACCOUNT_LIST_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Accounts retrieved", result)
}

// ActivateAccount approves a PENDING (or reinstates a SUSPENDED) account
func (h *AdminHandler) ActivateAccount(c fiber.Ctx) error {
	result, err := h.accountFlow.Activate(requestContext(c, "/api/v1/admin/accounts/:uuid/activate"), c.Params("uuid"), clientMetadata(c))
	if err != nil {
		return h.mapAccountError(c, err, "Failed to activate account", "ACCOUNT_ACTIVATE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Account activated", result)
}

// SuspendAccount takes an ACTIVE account out of service
func (h *AdminHandler) SuspendAccount(c fiber.Ctx) error {
	result, err := h.accountFlow.Suspend(requestContext(c, "/api/v1/admin/accounts/:uuid/suspend"), c.Params("uuid"), clientMetadata(c))
	if err != nil {
		return h.mapAccountError(c, err, "Failed to suspend account", "ACCOUNT_SUSPEND_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Account suspended", result)
}

func (h *AdminHandler) mapAccountError(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsInvalidStatusTransition(err):
		return errorResponse(c, fiber.StatusConflict, "Invalid account status for this operation", "INVALID_STATUS_TRANSITION", nil)
	}
	log.Println(fallbackMsg, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
}
