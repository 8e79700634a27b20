// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"strings"

	"bsuchat/internal/security"

	"github.com/gofiber/fiber/v2"
)

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (security.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired enforces a valid bearer token and stores the user id and
// admin flag in locals.
func AuthRequired(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}
		tokenString, ok := BearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("userID", claims.UserID)
		c.Locals("isAdmin", claims.Admin)
		return c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired(c *fiber.Ctx) error {
	if admin, _ := c.Locals("isAdmin").(bool); !admin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}
	return c.Next()
}
