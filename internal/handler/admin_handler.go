package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/service"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

// Sweeper runs one janitor pass on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (service.SweepReport, error)
}

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	janitor Sweeper
	logger  zerolog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(janitor Sweeper, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		janitor: janitor,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds admin routes; every route requires the admin role.
func (h *AdminHandler) Register(router fiber.Router) {
	group := router.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	group.Post("/janitor/run", h.runJanitor)
}

func (h *AdminHandler) runJanitor(c *fiber.Ctx) error {
	report, err := h.janitor.RunOnce(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("manual janitor sweep finished with errors")
		return err
	}

	requestLogger(h.logger, c).Info().
		Int64("rooms", report.RoomsDeactivated).
		Int64("users", report.UsersDeactivated).
		Int("presences", report.PresencesPruned).
		Msg("manual janitor sweep")
	return utils.SendSuccess(c, "janitor sweep completed", report)
}
