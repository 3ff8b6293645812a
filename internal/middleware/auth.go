// Package middleware provides HTTP middleware components for the application.
// It includes authentication, authorization, and rate limiting for the
// fiber web framework.
package middleware

import (
	"context"
	"strings"

	"adforge/internal/models"
	"adforge/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware validates bearer tokens issued by the identity provider.
type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
	}
}

// Handler validates JWT tokens and adds claims to the request context.
// It checks for:
// - Presence of Authorization header with Bearer token
// - Valid JWT signature
// - Token expiration
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := utils.ParseToken(tokenString, m.secret)
	if err != nil {
		logrus.WithField("error", err.Error()).Debug("token validation failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	if claims.Role == "" {
		claims.Role = models.RoleUser
	}
	if len(claims.Permissions) == 0 {
		claims.Permissions = models.GetDefaultPermissions(claims.Role)
	}

	// Store the claims in the context
	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)

	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*models.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		// If user is admin, allow all permissions
		if claims.Role == models.RoleAdmin {
			return c.Next()
		}

		if claims.HasPermission(permission) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
}

// ProfileLookup reads the wallet that may carry the admin flag.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Wallet, error)
}

// AdminOnly admits tokens with the admin role, or users whose wallet is
// flagged as admin.
func AdminOnly(profiles ProfileLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*models.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid claims"})
		}

		if claims.Role == models.RoleAdmin {
			return c.Next()
		}

		if profiles != nil {
			wallet, err := profiles.GetProfile(c.UserContext(), claims.UserID)
			if err == nil && wallet.IsAdmin {
				return c.Next()
			}
		}

		logrus.WithField("user_id", claims.UserID).Warn("admin access denied")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
}
