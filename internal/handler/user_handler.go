package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/service"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

// UserHandler exposes the user identity endpoints.
type UserHandler struct {
	service service.IdentityService
	logger  zerolog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service service.IdentityService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds user routes. The session lookup is registered before the :userId routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/users", h.create)
	router.Get("/users/session/:sessionId", h.getBySession)
	router.Get("/users/:userId", h.get)
	router.Put("/users/:userId", h.update)
	router.Delete("/users/:userId", h.deactivate)
	router.Get("/users/:userId/activity", h.activity)
	router.Post("/users/:userId/update-time", h.updateTime)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var req dto.UserCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.service.CreateUser(requestContext(c), req)
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Str("user_id", user.UserID).Msg("user created")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", dto.NewUserResponse(user))
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	user, err := h.service.GetUserByUserID(requestContext(c), userID)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "user retrieved", dto.NewUserResponse(user))
}

func (h *UserHandler) getBySession(c *fiber.Ctx) error {
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		return err
	}

	user, err := h.service.GetUserBySessionID(requestContext(c), sessionID)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "user retrieved", dto.NewUserResponse(user))
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	var req dto.UserUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateUser(requestContext(c), userID, req)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "user updated", dto.NewUserResponse(user))
}

func (h *UserHandler) deactivate(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	if err := h.service.DeactivateUser(requestContext(c), userID); err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Str("user_id", userID).Msg("user deactivated")
	return utils.SendSuccess(c, "user deactivated", fiber.Map{"userId": userID})
}

func (h *UserHandler) activity(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	user, err := h.service.GetUserByUserID(requestContext(c), userID)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "user activity retrieved", dto.NewUserActivityResponse(user))
}

func (h *UserHandler) updateTime(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	var req dto.UpdateTimeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	minutes := -1
	if req.Minutes != nil {
		minutes = *req.Minutes
	}

	user, err := h.service.AddMinutes(requestContext(c), userID, minutes)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "time updated", dto.NewUserActivityResponse(user))
}
