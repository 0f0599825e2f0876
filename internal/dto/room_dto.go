package dto

import (
	"time"

	"github.com/noah-isme/collab-room-api/internal/models"
)

// RoomSettingsInput carries optional overrides for room settings.
type RoomSettingsInput struct {
	AllowAnonymous     *bool `json:"allowAnonymous"`
	AllowCodeEditing   *bool `json:"allowCodeEditing"`
	AllowNotesEditing  *bool `json:"allowNotesEditing"`
	AllowCanvasDrawing *bool `json:"allowCanvasDrawing"`
	AllowChat          *bool `json:"allowChat"`
	IsPublic           *bool `json:"isPublic"`
}

// Apply merges the overrides over base.
func (s *RoomSettingsInput) Apply(base models.RoomSettings) models.RoomSettings {
	if s == nil {
		return base
	}
	merge := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	merge(&base.AllowAnonymous, s.AllowAnonymous)
	merge(&base.AllowCodeEditing, s.AllowCodeEditing)
	merge(&base.AllowNotesEditing, s.AllowNotesEditing)
	merge(&base.AllowCanvasDrawing, s.AllowCanvasDrawing)
	merge(&base.AllowChat, s.AllowChat)
	merge(&base.IsPublic, s.IsPublic)
	return base
}

// RoomCreateRequest is the payload for POST /rooms. maxParticipants is clamped, not rejected.
type RoomCreateRequest struct {
	RoomName        *string            `json:"roomName" validate:"omitempty,min=1,max=100"`
	Description     *string            `json:"description" validate:"omitempty,max=500"`
	MaxParticipants *int               `json:"maxParticipants"`
	Settings        *RoomSettingsInput `json:"settings"`
}

// RoomUpdateRequest is the partial update payload for PUT /rooms/:roomId.
type RoomUpdateRequest struct {
	RoomName        *string            `json:"roomName" validate:"omitempty,min=1,max=100"`
	Description     *string            `json:"description" validate:"omitempty,max=500"`
	MaxParticipants *int               `json:"maxParticipants"`
	Settings        *RoomSettingsInput `json:"settings"`
}

// RoomListQuery describes GET /rooms query parameters.
type RoomListQuery struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=50"`
	Search    string `query:"search" validate:"omitempty,max=100"`
	SortBy    string `query:"sortBy" validate:"omitempty,oneof=lastActivityAt createdAt roomName currentParticipants"`
	SortOrder string `query:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

// ParticipantResponse is the public view of a presence.
type ParticipantResponse struct {
	UserID         string                          `json:"userId"`
	Username       string                          `json:"username"`
	IsActive       bool                            `json:"isActive"`
	CursorPosition models.CursorPosition           `json:"cursorPosition"`
	Color          string                          `json:"color"`
	Accessibility  models.AccessibilityPreferences `json:"accessibility"`
	JoinedAt       time.Time                       `json:"joinedAt"`
	LastActivityAt time.Time                       `json:"lastActivityAt"`
}

// RoomSummaryResponse is a listing entry.
type RoomSummaryResponse struct {
	RoomID              string              `json:"roomId"`
	RoomName            string              `json:"roomName"`
	Description         string              `json:"description"`
	CreatedBy           models.Actor        `json:"createdBy"`
	MaxParticipants     int                 `json:"maxParticipants"`
	CurrentParticipants int                 `json:"currentParticipants"`
	Settings            models.RoomSettings `json:"settings"`
	CreatedAt           time.Time           `json:"createdAt"`
	LastActivityAt      time.Time           `json:"lastActivityAt"`
}

// RoomResponse is the full room view: active participants and settings, no chat.
type RoomResponse struct {
	RoomSummaryResponse
	IsActive      bool                  `json:"isActive"`
	Participants  []ParticipantResponse `json:"participants"`
	CodeVersion   int64                 `json:"codeVersion"`
	NotesVersion  int64                 `json:"notesVersion"`
	CanvasVersion int64                 `json:"canvasVersion"`
}

// PaginationResponse describes page navigation.
type PaginationResponse struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalRooms  int64 `json:"totalRooms"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// RoomListResponse is returned by GET /rooms.
type RoomListResponse struct {
	Rooms      []RoomSummaryResponse `json:"rooms"`
	Pagination PaginationResponse    `json:"pagination"`
}

// ParticipantListResponse is returned by GET /rooms/:roomId/participants.
type ParticipantListResponse struct {
	RoomID            string                `json:"roomId"`
	Participants      []ParticipantResponse `json:"participants"`
	TotalParticipants int                   `json:"totalParticipants"`
}

// ChatMessageResponse is the wire form of a chat message.
type ChatMessageResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Message     string    `json:"message"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChatHistoryResponse is returned by GET /rooms/:roomId/chat.
type ChatHistoryResponse struct {
	RoomID   string                `json:"roomId"`
	Messages []ChatMessageResponse `json:"messages"`
	Total    int                   `json:"total"`
}

// NewParticipantResponse converts a presence into a DTO.
func NewParticipantResponse(p models.ParticipantPresence) ParticipantResponse {
	return ParticipantResponse{
		UserID:         p.UserID,
		Username:       p.Username,
		IsActive:       p.IsActive,
		CursorPosition: p.CursorPosition,
		Color:          p.Color,
		Accessibility:  p.Accessibility,
		JoinedAt:       p.JoinedAt,
		LastActivityAt: p.LastActivityAt,
	}
}

// NewParticipantResponseSlice converts presences into DTOs.
func NewParticipantResponseSlice(participants []models.ParticipantPresence) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(participants))
	for _, participant := range participants {
		out = append(out, NewParticipantResponse(participant))
	}
	return out
}

// NewRoomSummaryResponse converts a room into a listing entry.
func NewRoomSummaryResponse(room models.Room) RoomSummaryResponse {
	return RoomSummaryResponse{
		RoomID:              room.RoomID,
		RoomName:            room.RoomName,
		Description:         room.Description,
		CreatedBy:           room.CreatedBy(),
		MaxParticipants:     room.MaxParticipants,
		CurrentParticipants: room.CurrentParticipants,
		Settings:            room.Settings.Data(),
		CreatedAt:           room.CreatedAt,
		LastActivityAt:      room.LastActivityAt,
	}
}

// NewRoomResponse converts a room into the full view.
func NewRoomResponse(room models.Room) RoomResponse {
	return RoomResponse{
		RoomSummaryResponse: NewRoomSummaryResponse(room),
		IsActive:            room.IsActive,
		Participants:        NewParticipantResponseSlice(room.ActiveParticipants()),
		CodeVersion:         room.CodeDocument.Data().Version,
		NotesVersion:        room.NotesDocument.Data().Version,
		CanvasVersion:       room.CanvasDocument.Data().Version,
	}
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:          message.ID,
		UserID:      message.UserID,
		Username:    message.Username,
		Message:     message.Message,
		MessageType: message.MessageType,
		Timestamp:   message.Timestamp,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// NewPagination computes page navigation flags.
func NewPagination(page, limit int, total int64) PaginationResponse {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationResponse{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalRooms:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
