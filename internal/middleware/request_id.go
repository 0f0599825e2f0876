package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LocalRequestID is the fiber locals key holding the request id.
const LocalRequestID = "request_id"

const maxRequestIDLength = 128

// requestIDHeaders are checked in order for a caller-supplied id.
var requestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

type requestIDKey struct{}

// RequestID stamps every request with an id that ends up in logs, error envelopes and socket
// sessions. A well-formed caller id is kept; anything else is replaced by a UUID.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := ""
		for _, header := range requestIDHeaders {
			if candidate := strings.TrimSpace(c.Get(header)); candidate != "" {
				id = candidate
				break
			}
		}
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Locals(LocalRequestID, id)
		c.Set(fiber.HeaderXRequestID, id)
		c.SetUserContext(ContextWithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalRequestID).(string); ok {
		return id
	}
	return RequestIDFromContext(c.UserContext())
}

// RequestIDFromContext extracts the request id carried by ctx.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID returns ctx carrying id. Blank ids leave ctx untouched.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}
