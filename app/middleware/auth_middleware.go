// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/app/services"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware validates bearer tokens for protected endpoints
type AuthMiddleware struct {
	tokenSvc services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenSvc services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates user access tokens and stores the user id in
// request locals for downstream handlers.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := bearerToken(c)
		if errResp != nil {
			return errResp
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			return unauthorized(c, err)
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("session_token", token)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}
		return c.Next()
	}
}

// AdminAuthenticate validates back-office access tokens
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := bearerToken(c)
		if errResp != nil {
			return errResp
		}

		claims, err := m.tokenSvc.ValidateAdminToken(token)
		if err != nil {
			return unauthorized(c, err)
		}

		c.Locals("admin_id", claims.AdminID)
		c.Locals("token_id", claims.TokenID)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}
		return c.Next()
	}
}

// bearerToken extracts the token from the Authorization header; the
// second return value is a non-nil response error when extraction fails.
func bearerToken(c fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Authorization header is required",
			Error:   dto.ErrorDetail{Code: "MISSING_AUTHORIZATION_HEADER"},
		})
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid authorization header format. Expected 'Bearer <token>'",
			Error:   dto.ErrorDetail{Code: "INVALID_AUTHORIZATION_FORMAT"},
		})
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Access token is required",
			Error:   dto.ErrorDetail{Code: "MISSING_ACCESS_TOKEN"},
		})
	}
	return token, nil
}

func unauthorized(c fiber.Ctx, err error) error {
	code := "TOKEN_VALIDATION_FAILED"
	msg := "Token validation failed"
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		code, msg = "TOKEN_EXPIRED", "Access token has expired"
	case errors.Is(err, services.ErrTokenInvalid):
		code, msg = "TOKEN_INVALID", "Invalid access token"
	case errors.Is(err, services.ErrTokenRevoked):
		code, msg = "TOKEN_REVOKED", "Access token has been revoked"
	}
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: msg,
		Error:   dto.ErrorDetail{Code: code},
	})
}
