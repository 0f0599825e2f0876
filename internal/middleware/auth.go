package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/collab-room-api/internal/apperror"
	"github.com/noah-isme/collab-room-api/internal/models"
)

// Locals keys populated by the identity middlewares.
const (
	LocalRole        = "user_role"
	LocalSubject     = "user_id"
	LocalSessionUser = "session_user"
)

// RoleAdmin grants room administration regardless of ownership.
const RoleAdmin = "admin"

// SessionResolver looks up the active user bound to a session id.
type SessionResolver interface {
	GetUserBySessionID(ctx context.Context, sessionID string) (models.User, error)
}

// OptionalJWT validates a bearer token when one is present and exposes its subject and role.
// Requests without an Authorization header pass through anonymously.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return c.Next()
		}
		if secret == "" {
			return apperror.Unauthorized("token authentication is not configured")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return apperror.Unauthorized("invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return apperror.Unauthorized("invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return apperror.Unauthorized("invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return apperror.Unauthorized("invalid token claims")
		}

		if subject := extractSubject(claims); subject != "" {
			c.Locals(LocalSubject, subject)
		}
		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals(LocalRole, role)
		}

		return c.Next()
	}
}

// SessionIdentity resolves the X-Session-ID header to the active user, when present.
func SessionIdentity(resolver SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := strings.TrimSpace(c.Get("X-Session-ID"))
		if sessionID == "" || resolver == nil {
			return c.Next()
		}

		user, err := resolver.GetUserBySessionID(c.UserContext(), sessionID)
		if err == nil {
			c.Locals(LocalSessionUser, user)
		}
		return c.Next()
	}
}

// SessionUser returns the user resolved by SessionIdentity.
func SessionUser(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(LocalSessionUser).(models.User)
	return user, ok
}

// IsAdmin reports whether the request carries an administrator token.
func IsAdmin(c *fiber.Ctx) bool {
	return callerRole(c) == RoleAdmin
}

func extractSubject(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id"} {
		switch v := claims[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if role := normalizeRole(claims[key]); role != "" {
			return role
		}
	}
	return ""
}

// normalizeRole lowercases a role claim. For role lists the first non-empty entry wins.
func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []string:
		for _, item := range v {
			if role := normalizeRole(item); role != "" {
				return role
			}
		}
	case []interface{}:
		for _, item := range v {
			if role := normalizeRole(item); role != "" {
				return role
			}
		}
	}
	return ""
}
