package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/apperror"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/service"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

// RoomHandler exposes the room REST endpoints.
type RoomHandler struct {
	service service.RoomService
	logger  zerolog.Logger
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(service service.RoomService, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		logger:  logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds room routes.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Get("/rooms", h.list)
	router.Post("/rooms", h.create)
	router.Get("/rooms/:roomId", h.get)
	router.Put("/rooms/:roomId", h.update)
	router.Delete("/rooms/:roomId", h.deactivate)
	router.Get("/rooms/:roomId/participants", h.participants)
	router.Get("/rooms/:roomId/chat", h.chat)
}

func (h *RoomHandler) list(c *fiber.Ctx) error {
	var query dto.RoomListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	for key, value := range map[string]int{"page": query.Page, "limit": query.Limit} {
		if c.Query(key) != "" && value < 1 {
			return apperror.Validation("invalid query parameter", apperror.FieldError{Field: key, Message: "must be at least 1"})
		}
	}

	page, err := h.service.ListRooms(requestContext(c), query)
	if err != nil {
		return err
	}

	rooms := make([]dto.RoomSummaryResponse, 0, len(page.Rooms))
	for _, room := range page.Rooms {
		rooms = append(rooms, dto.NewRoomSummaryResponse(room))
	}

	return utils.SendSuccess(c, "rooms retrieved", dto.RoomListResponse{
		Rooms:      rooms,
		Pagination: dto.NewPagination(page.Page, page.Limit, page.Total),
	})
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	var req dto.RoomCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	room, err := h.service.CreateRoom(requestContext(c), req, requestActor(c))
	if err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Str("room_id", room.RoomID).Msg("room created")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", dto.NewRoomResponse(room))
}

func (h *RoomHandler) get(c *fiber.Ctx) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}

	room, err := h.service.GetRoom(requestContext(c), roomID)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "room retrieved", dto.NewRoomResponse(room))
}

func (h *RoomHandler) update(c *fiber.Ctx) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}

	var req dto.RoomUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	room, err := h.service.UpdateRoom(requestContext(c), roomID, req, requester(c))
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "room updated", dto.NewRoomResponse(room))
}

func (h *RoomHandler) deactivate(c *fiber.Ctx) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}

	if err := h.service.DeactivateRoom(requestContext(c), roomID, requester(c)); err != nil {
		return err
	}

	requestLogger(h.logger, c).Info().Str("room_id", roomID).Msg("room deactivated")
	return utils.SendSuccess(c, "room deactivated", fiber.Map{"roomId": roomID})
}

func (h *RoomHandler) participants(c *fiber.Ctx) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}

	participants, err := h.service.ListActiveParticipants(requestContext(c), roomID)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "participants retrieved", dto.ParticipantListResponse{
		RoomID:            roomID,
		Participants:      dto.NewParticipantResponseSlice(participants),
		TotalParticipants: len(participants),
	})
}

func (h *RoomHandler) chat(c *fiber.Ctx) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return err
	}
	if c.Query("limit") != "" && (limit < 1 || limit > 100) {
		return apperror.Validation("invalid query parameter", apperror.FieldError{Field: "limit", Message: "must be between 1 and 100"})
	}

	messages, err := h.service.GetChatTail(requestContext(c), roomID, limit)
	if err != nil {
		return err
	}

	return utils.SendSuccess(c, "chat history retrieved", dto.ChatHistoryResponse{
		RoomID:   roomID,
		Messages: dto.NewChatMessageResponseSlice(messages),
		Total:    len(messages),
	})
}
