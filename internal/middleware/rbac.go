package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/noah-isme/collab-room-api/internal/apperror"
)

// RequireRole rejects anonymous callers with 401 and callers holding none of roles with 403.
func RequireRole(roles ...string) fiber.Handler {
	allowed := lo.Compact(lo.Map(roles, func(role string, _ int) string {
		return strings.ToLower(strings.TrimSpace(role))
	}))

	return func(c *fiber.Ctx) error {
		role := callerRole(c)
		if role == "" {
			return apperror.Unauthorized("authentication required")
		}
		if !lo.Contains(allowed, role) {
			return apperror.Forbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// callerRole reads the role stored by OptionalJWT.
func callerRole(c *fiber.Ctx) string {
	return normalizeRole(c.Locals(LocalRole))
}
