package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/apperror"
	"github.com/noah-isme/collab-room-api/internal/observability"
)

// Observability counts and times every request and writes one log line per request.
// Websocket upgrades are counted but not timed, since their handler runs for the connection lifetime.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			// ErrorHandler has not written the response yet.
			status = apperror.From(err).Status
		}

		method, route, code := c.Method(), routeTemplate(c), strconv.Itoa(status)
		observability.HTTPRequests().WithLabelValues(method, route, code).Inc()
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, code).Inc()
		}
		if status != fiber.StatusSwitchingProtocols {
			observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		}

		logger.WithLevel(levelForStatus(status)).
			Str("request_id", GetRequestID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Msg("http request")

		return err
	}
}

func levelForStatus(status int) zerolog.Level {
	switch {
	case status >= fiber.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= fiber.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.DebugLevel
	}
}

// routeTemplate keeps metric cardinality bounded by labelling with the registered pattern.
func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return "unmatched"
}
