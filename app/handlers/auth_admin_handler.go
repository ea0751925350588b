// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AdminAuthHandler handles back-office authentication endpoints
type AdminAuthHandler struct {
	adminAuthFlow businessflow.AdminAuthFlow
	validator     *validator.Validate
}

// NewAdminAuthHandler creates a new admin authentication handler
func NewAdminAuthHandler(adminAuthFlow businessflow.AdminAuthFlow) *AdminAuthHandler {
	return &AdminAuthHandler{
		adminAuthFlow: adminAuthFlow,
		validator:     validator.New(),
	}
}

// CaptchaInit issues a rotate captcha challenge for the admin login form
func (h *AdminAuthHandler) CaptchaInit(c fiber.Ctx) error {
	result, err := h.adminAuthFlow.InitCaptcha(requestContext(c, "/api/v1/admin/auth/captcha/init"))
	if err != nil {
		log.Println("Captcha init failed", err)
		return errorResponse(c, fiber.StatusServiceUnavailable, "Captcha unavailable", "CAPTCHA_INIT_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Captcha generated", result)
}

// Login verifies captcha plus credentials and issues admin tokens
func (h *AdminAuthHandler) Login(c fiber.Ctx) error {
	var req dto.AdminCaptchaVerifyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.adminAuthFlow.Verify(requestContext(c, "/api/v1/admin/auth/login"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCaptcha(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Captcha validation failed", "CAPTCHA_INVALID", nil)
		}
		if businessflow.IsAdminNotFound(err) || businessflow.IsIncorrectPassword(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsAdminInactive(err) {
			return errorResponse(c, fiber.StatusForbidden, "Admin account is inactive", "ADMIN_INACTIVE", nil)
		}
		log.Println("Admin login failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Admin login failed", "ADMIN_LOGIN_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Login successful", result)
}
