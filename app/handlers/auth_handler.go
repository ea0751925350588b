// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Signup(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authFlow  businessflow.AuthFlow
	validator *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow) *AuthHandler {
	return &AuthHandler{
		authFlow:  authFlow,
		validator: validator.New(),
	}
}

// Signup registers a new user and returns the session plus any partner
// invitations already waiting for the email.
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.authFlow.Signup(requestContext(c, "/api/v1/auth/signup"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return errorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		log.Println("Signup failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Signup failed", "SIGNUP_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "Signup completed successfully", result)
}

// Login authenticates a user with email and password
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.authFlow.Login(requestContext(c, "/api/v1/auth/login"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsUserNotFound(err) || businessflow.IsIncorrectPassword(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsUserInactive(err) {
			return errorResponse(c, fiber.StatusForbidden, "User account is inactive", "USER_INACTIVE", nil)
		}
		log.Println("Login failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh exchanges a refresh token for a new session
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationErrorResponse(c, err)
	}

	result, err := h.authFlow.Refresh(requestContext(c, "/api/v1/auth/refresh"), &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsSessionNotFound(err) || businessflow.IsSessionExpired(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Session is no longer valid", "SESSION_INVALID", nil)
		}
		if businessflow.IsUserInactive(err) {
			return errorResponse(c, fiber.StatusForbidden, "User account is inactive", "USER_INACTIVE", nil)
		}
		log.Println("Token refresh failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Token refresh failed", "REFRESH_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Token refreshed", result)
}

// Logout expires the current session and revokes its access token
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sessionToken, ok := c.Locals("session_token").(string)
	if !ok || sessionToken == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Not authenticated", "UNAUTHENTICATED", nil)
	}

	err := h.authFlow.Logout(requestContext(c, "/api/v1/auth/logout"), sessionToken, clientMetadata(c))
	if err != nil {
		if businessflow.IsSessionNotFound(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Session not found", "SESSION_NOT_FOUND", nil)
		}
		log.Println("Logout failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Logout failed", "LOGOUT_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Logged out", nil)
}
