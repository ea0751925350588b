// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// PartnerHandler handles partner invitation endpoints
type PartnerHandler struct {
	partnerFlow businessflow.PartnerFlow
	validator   *validator.Validate
}

// NewPartnerHandler creates a new partner handler
func NewPartnerHandler(partnerFlow businessflow.PartnerFlow) *PartnerHandler {
	return &PartnerHandler{
		partnerFlow: partnerFlow,
		validator:   validator.New(),
	}
}

// AddCompanyPartner invites a director/shareholder onto a COMPANY account
func (h *PartnerHandler) AddCompanyPartner(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.AddCompanyPartnerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.partnerFlow.AddCompanyPartner(requestContext(c, "/api/v1/partners/company"), userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to add partner", "PARTNER_ADD_FAILED")
	}
	return successResponse(c, fiber.StatusCreated, "Partner invited", result)
}

// AddTrustPartner invites a trustee/beneficiary onto a TRUST account
func (h *PartnerHandler) AddTrustPartner(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.AddTrustPartnerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.partnerFlow.AddTrustPartner(requestContext(c, "/api/v1/partners/trust"), userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to add partner", "PARTNER_ADD_FAILED")
	}
	return successResponse(c, fiber.StatusCreated, "Partner invited", result)
}

// AddPartnershipPartner invites a partner onto a PARTNERSHIP account
func (h *PartnerHandler) AddPartnershipPartner(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.AddPartnershipPartnerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.partnerFlow.AddPartnershipPartner(requestContext(c, "/api/v1/partners/partnership"), userID, &req, clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to add partner", "PARTNER_ADD_FAILED")
	}
	return successResponse(c, fiber.StatusCreated, "Partner invited", result)
}

// Update edits a partner record (owner side)
func (h *PartnerHandler) Update(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.UpdatePartnerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.partnerFlow.Update(requestContext(c, "/api/v1/partners/:uuid"), userID, c.Params("uuid"), &req, clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to update partner", "PARTNER_UPDATE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Partner updated", result)
}

// Remove hard-deletes a partner record (owner side)
func (h *PartnerHandler) Remove(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	err := h.partnerFlow.Remove(requestContext(c, "/api/v1/partners/:uuid"), userID, c.Params("uuid"), clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to remove partner", "PARTNER_REMOVE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Partner removed", nil)
}

// Respond records the invitee's approve/reject decision
func (h *PartnerHandler) Respond(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	var req dto.RespondInvitationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.partnerFlow.Respond(requestContext(c, "/api/v1/partners/:uuid/respond"), userID, c.Params("uuid"), &req, clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to respond to invitation", "PARTNER_RESPOND_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Invitation response recorded", result)
}

// Resend re-dispatches a PENDING invitation email
func (h *PartnerHandler) Resend(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	err := h.partnerFlow.Resend(requestContext(c, "/api/v1/partners/:uuid/resend"), userID, c.Params("uuid"), clientMetadata(c))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to resend invitation", "INVITATION_RESEND_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Invitation resent", nil)
}

// ListByAccount lists all partner records on an account
func (h *PartnerHandler) ListByAccount(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.partnerFlow.ListByAccount(requestContext(c, "/api/v1/accounts/:uuid/partners"), userID, c.Params("uuid"))
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to list partners", "PARTNER_LIST_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Partners retrieved", result)
}

// MyInvitations lists PENDING invitations addressed to the caller
func (h *PartnerHandler) MyInvitations(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	result, err := h.partnerFlow.ListMyInvitations(requestContext(c, "/api/v1/partners/invitations"), userID)
	if err != nil {
		log.Println("Invitation list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list invitations", "PARTNER_LIST_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Invitations retrieved", result)
}

// CheckEmail reports registration and invitation status for an email
func (h *PartnerHandler) CheckEmail(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	email := c.Query("email")
	if email == "" {
		return errorResponse(c, fiber.StatusBadRequest, "email query parameter is required", "VALIDATION_ERROR", nil)
	}

	result, err := h.partnerFlow.CheckEmail(requestContext(c, "/api/v1/accounts/:uuid/partners/check-email"), userID, c.Params("uuid"), email)
	if err != nil {
		return h.mapPartnerError(c, err, "Failed to check email", "PARTNER_CHECK_EMAIL_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Email checked", result)
}

func (h *PartnerHandler) mapPartnerError(c fiber.Ctx, err error, fallbackMsg, fallbackCode string) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsAccountAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, "Account does not belong to you", "ACCOUNT_ACCESS_DENIED", nil)
	case businessflow.IsPartnerNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Partner not found", "PARTNER_NOT_FOUND", nil)
	case businessflow.IsPartnerEmailIsOwner(err):
		return errorResponse(c, fiber.StatusBadRequest, "You cannot invite yourself as a partner", "PARTNER_EMAIL_IS_OWNER", nil)
	case businessflow.IsPartnerEmailAlreadyExists(err):
		return errorResponse(c, fiber.StatusConflict, "This email is already invited on the account", "PARTNER_EMAIL_ALREADY_EXISTS", nil)
	case businessflow.IsPartnerNotAddressedToYou(err):
		return errorResponse(c, fiber.StatusForbidden, "This invitation is not addressed to you", "PARTNER_NOT_ADDRESSED_TO_YOU", nil)
	case businessflow.IsPartnerNotPending(err):
		return errorResponse(c, fiber.StatusConflict, "Invitation is not pending", "PARTNER_NOT_PENDING", nil)
	case businessflow.IsPartnerRoleRequired(err):
		return errorResponse(c, fiber.StatusBadRequest, "Partner role is required", "PARTNER_ROLE_REQUIRED", nil)
	case businessflow.IsPartnerKindMismatch(err):
		return errorResponse(c, fiber.StatusBadRequest, "Partner type does not match the account's entity type", "PARTNER_KIND_MISMATCH", nil)
	case businessflow.IsInvalidStatusTransition(err):
		return errorResponse(c, fiber.StatusConflict, "Invalid account status for this operation", "INVALID_STATUS_TRANSITION", nil)
	}
	log.Println(fallbackMsg, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMsg, fallbackCode, nil)
}
