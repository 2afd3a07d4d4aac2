// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/services"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates agent JWTs and stores the agent code in the request
// context for downstream handlers.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := extractBearerToken(c)
		if errResp != nil {
			return errResp
		}

		claims, err := m.tokenService.ValidateAgentToken(c.Context(), token)
		if err != nil {
			return tokenErrorResponse(c, err)
		}

		c.Locals("agent_code", claims.AgentCode)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// AdminAuthenticate validates admin JWTs and sets admin-specific context values
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, errResp := extractBearerToken(c)
		if errResp != nil {
			return errResp
		}

		adminClaims, err := m.tokenService.ValidateAdminToken(c.Context(), token)
		if err != nil {
			return tokenErrorResponse(c, err)
		}

		c.Locals("admin_id", adminClaims.AdminID)
		c.Locals("token_id", adminClaims.TokenID)
		c.Locals("token_claims", adminClaims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// ServiceAuthenticate guards event-intake endpoints called by collaborator
// services. Callers present the shared service token in the X-Service-Token
// header; an empty configured token rejects every request.
func ServiceAuthenticate(serviceToken string) fiber.Handler {
	return func(c fiber.Ctx) error {
		presented := c.Get("X-Service-Token")
		if serviceToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(serviceToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid service token",
				Error:   dto.ErrorDetail{Code: "INVALID_SERVICE_TOKEN"},
			})
		}
		return c.Next()
	}
}

// extractBearerToken pulls the token out of the Authorization header; the
// second return value is a ready error response when the header is unusable.
func extractBearerToken(c fiber.Ctx) (string, error) {
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

func tokenErrorResponse(c fiber.Ctx, err error) error {
	var code, msg string
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		code = "TOKEN_EXPIRED"
		msg = "Access token has expired"
	case errors.Is(err, services.ErrTokenInvalid):
		code = "TOKEN_INVALID"
		msg = "Invalid access token"
	case errors.Is(err, services.ErrTokenRevoked):
		code = "TOKEN_REVOKED"
		msg = "Access token has been revoked"
	default:
		code = "TOKEN_VALIDATION_FAILED"
		msg = "Token validation failed"
	}
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: msg,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// GetAgentCodeFromContext extracts the authenticated agent code from the
// request context
func GetAgentCodeFromContext(c fiber.Ctx) (string, bool) {
	agentCode, ok := c.Locals("agent_code").(string)
	return agentCode, ok && agentCode != ""
}

// GetAdminIDFromContext extracts admin ID from the request context
func GetAdminIDFromContext(c fiber.Ctx) (uint, bool) {
	adminID, ok := c.Locals("admin_id").(uint)
	return adminID, ok
}

// RequireAgentAuth ensures an authenticated agent is present
func RequireAgentAuth(c fiber.Ctx) error {
	if _, exists := GetAgentCodeFromContext(c); !exists {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Authentication required",
			Error:   dto.ErrorDetail{Code: "AUTHENTICATION_REQUIRED"},
		})
	}
	return nil
}

// RequireAdminAuth ensures admin authentication is present
func RequireAdminAuth(c fiber.Ctx) error {
	adminID, exists := GetAdminIDFromContext(c)
	if !exists || adminID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Admin authentication required",
			Error:   dto.ErrorDetail{Code: "ADMIN_AUTHENTICATION_REQUIRED"},
		})
	}
	return nil
}
