package middleware

import (
	"strings"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/services"
	"github.com/gofiber/fiber/v3"
)

const (
	// ContextKeyAdminEmail is the key for the admin email in context
	ContextKeyAdminEmail = "admin_email"
)

// AuthMiddleware creates a middleware that validates admin JWT tokens
func AuthMiddleware(jwtService *services.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Try to get token from Authorization header first
		authHeader := c.Get("Authorization")
		var token string

		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// If no token in header, try to get from cookie
		if token == "" {
			token = c.Cookies("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Authentication required",
			})
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(ContextKeyAdminEmail, claims.Email)

		return c.Next()
	}
}

// GetAdminEmail gets the authenticated admin email from context
func GetAdminEmail(c fiber.Ctx) string {
	if email, ok := c.Locals(ContextKeyAdminEmail).(string); ok {
		return email
	}
	return ""
}
