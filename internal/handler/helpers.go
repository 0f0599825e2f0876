package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/apperror"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/service"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperror.Validation("invalid query parameter", apperror.FieldError{Field: key, Message: "must be an integer"})
	}
	return parsed, nil
}

func parseBody(c *fiber.Ctx, target interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(target); err != nil {
		return apperror.Validation("request body must be valid JSON")
	}
	return nil
}

func pathID(c *fiber.Ctx, key string) (string, error) {
	value := strings.TrimSpace(c.Params(key))
	if !dto.ValidRoomID(value) {
		return "", apperror.Validation("invalid path parameter", apperror.FieldError{Field: key, Message: "must be 1-64 letters, digits, '-' or '_'"})
	}
	return value, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithRequestID(ctx, middleware.GetRequestID(c))
}

func requester(c *fiber.Ctx) service.Requester {
	req := service.Requester{Admin: middleware.IsAdmin(c)}
	if user, ok := middleware.SessionUser(c); ok {
		req.Actor = user.Actor()
	}
	return req
}

func requestActor(c *fiber.Ctx) models.Actor {
	if user, ok := middleware.SessionUser(c); ok {
		return user.Actor()
	}
	return models.SystemActor()
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if requestID := middleware.GetRequestID(c); requestID != "" {
			logger = base.With().Str("request_id", requestID).Logger()
		}
	}
	return &logger
}
