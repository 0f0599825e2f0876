package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/apperror"
	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

// ErrorHandler renders every returned error as the JSON error envelope. Non-operational
// errors are logged and their details are hidden unless development is set.
func ErrorHandler(logger zerolog.Logger, development bool) fiber.ErrorHandler {
	base := logger.With().Str("component", "error_handler").Logger()

	return func(c *fiber.Ctx, err error) error {
		appErr := apperror.From(err)
		requestID := middleware.GetRequestID(c)

		message := appErr.Message
		if !appErr.Operational() {
			base.Error().
				Err(err).
				Str("request_id", requestID).
				Str("type", string(appErr.Type)).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("request failed")
			if development && appErr.Err != nil {
				message = appErr.Message + ": " + appErr.Err.Error()
			} else {
				message = "internal server error"
			}
		}

		var validation interface{}
		if len(appErr.Fields) > 0 {
			validation = appErr.Fields
		}

		return utils.SendError(c, appErr.Status, string(appErr.Type), message, requestID, validation)
	}
}
