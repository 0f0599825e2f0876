package service

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/repository"
)

// Document and message limits.
const (
	MaxCodeBytes       = 100 * 1024
	MaxNotesBytes      = 50 * 1024
	MaxCanvasBytes     = 1024 * 1024
	MaxChatMessageRune = 1000
	DefaultChatTail    = 50
	PresenceRetention  = time.Hour
)

var (
	// ErrRoomNotFound indicates the room is missing or inactive.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomUnavailable indicates the id belongs to a deactivated room.
	ErrRoomUnavailable = errors.New("room is no longer available")
	// ErrRoomFull indicates admission would exceed maxParticipants.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomNameTaken indicates another active room uses the name.
	ErrRoomNameTaken = errors.New("room name already in use")
	// ErrNotRoomOwner indicates the requester is neither the creator nor an administrator.
	ErrNotRoomOwner = errors.New("only the room creator or an administrator may change this room")
	// ErrMaxBelowCurrent rejects capacities lower than the current participant count.
	ErrMaxBelowCurrent = errors.New("maxParticipants cannot be lower than currentParticipants")
	// ErrFeatureDisabled indicates the room settings disable the requested feature.
	ErrFeatureDisabled = errors.New("feature disabled for this room")
	// ErrNotParticipant indicates the user holds no active presence in the room.
	ErrNotParticipant = errors.New("user is not an active participant of the room")
	// ErrSessionReplaced indicates the presence is bound to a newer connection.
	ErrSessionReplaced = errors.New("presence is bound to another session")
	// ErrInvalidLanguage rejects languages outside the supported set.
	ErrInvalidLanguage = errors.New("unsupported code language")
	// ErrContentTooLarge rejects documents above their size limit.
	ErrContentTooLarge = errors.New("document content too large")
	// ErrInvalidCanvas rejects canvas payloads that are not JSON values.
	ErrInvalidCanvas = errors.New("canvas data must be a JSON value")
	// ErrEmptyMessage rejects chat messages that are empty after trimming.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrMessageTooLong rejects chat messages longer than 1000 characters.
	ErrMessageTooLong = errors.New("message cannot exceed 1000 characters")
	// ErrInvalidMessageType rejects message types outside text, system and announcement.
	ErrInvalidMessageType = errors.New("invalid message type")
	// ErrInvalidCursor rejects negative cursor coordinates.
	ErrInvalidCursor = errors.New("cursor coordinates must be non-negative")

	errNothingToPrune = errors.New("nothing to prune")
)

// Requester identifies the caller of an administrative room operation.
type Requester struct {
	Actor models.Actor
	Admin bool
}

// PresenceUpdate carries the mutable presence fields.
type PresenceUpdate struct {
	CursorPosition *models.CursorPosition
	IsActive       *bool
}

// ChatInput is a chat message before the server assigns id and timestamp.
type ChatInput struct {
	UserID      string
	Username    string
	Message     string
	MessageType string
}

// RoomPage is one page of the active room listing.
type RoomPage struct {
	Rooms []models.Room
	Page  int
	Limit int
	Total int64
}

// RoomService enforces the room-scoped invariants on top of the room store.
type RoomService interface {
	CreateRoom(ctx context.Context, req dto.RoomCreateRequest, creator models.Actor) (models.Room, error)
	EnsureRoom(ctx context.Context, roomID string, creator models.Actor) (models.Room, bool, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	ListRooms(ctx context.Context, query dto.RoomListQuery) (RoomPage, error)
	UpdateRoom(ctx context.Context, roomID string, req dto.RoomUpdateRequest, requester Requester) (models.Room, error)
	DeactivateRoom(ctx context.Context, roomID string, requester Requester) error
	AddParticipant(ctx context.Context, roomID string, presence models.ParticipantPresence) (models.Room, error)
	RemoveParticipant(ctx context.Context, roomID, userID, sessionID string) (models.Room, error)
	UpdatePresence(ctx context.Context, roomID, userID, sessionID string, update PresenceUpdate) (models.ParticipantPresence, error)
	AppendChatMessage(ctx context.Context, roomID string, input ChatInput) (models.ChatMessage, error)
	UpdateCodeDocument(ctx context.Context, roomID, content, language string, editor models.Actor) (models.Document, error)
	UpdateNotesDocument(ctx context.Context, roomID, content string, editor models.Actor) (models.Document, error)
	UpdateCanvasDocument(ctx context.Context, roomID string, data json.RawMessage, editor models.Actor) (models.Document, error)
	ListActiveParticipants(ctx context.Context, roomID string) ([]models.ParticipantPresence, error)
	GetChatTail(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error)
	PruneParticipants(ctx context.Context, roomID string, cutoff time.Time) (int, error)
	SweepInactive(ctx context.Context, cutoff time.Time) (int64, error)
	ListLiveRoomIDs(ctx context.Context) ([]string, error)
}

type roomService struct {
	rooms     repository.RoomStore
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRoomService constructs the room service.
func NewRoomService(rooms repository.RoomStore, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "room_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/collab-room-api/internal/service/room"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *roomService) CreateRoom(ctx context.Context, req dto.RoomCreateRequest, creator models.Actor) (models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, err
	}

	ctx, span := s.tracer.Start(ctx, "room.create")
	defer span.End()

	roomID := uuid.NewString()
	name := ""
	if req.RoomName != nil {
		name = s.cleanText(*req.RoomName)
		if name != "" {
			if _, err := s.rooms.FindActiveRoomByName(ctx, name); err == nil {
				return models.Room{}, ErrRoomNameTaken
			} else if !errors.Is(err, repository.ErrNotFound) {
				span.RecordError(err)
				return models.Room{}, err
			}
		}
	}
	if name == "" {
		name = "Room " + roomID[:8]
	}

	description := ""
	if req.Description != nil {
		description = s.cleanText(*req.Description)
	}
	maxParticipants := 0
	if req.MaxParticipants != nil {
		maxParticipants = *req.MaxParticipants
	}

	room := s.newRoom(roomID, name, description, maxParticipants, req.Settings.Apply(models.DefaultRoomSettings()), creator)
	if err := s.rooms.InsertRoom(ctx, &room); err != nil {
		span.RecordError(err)
		return models.Room{}, err
	}

	s.logger.Info().Str("room_id", room.RoomID).Str("created_by", creator.UserID).Msg("room created")
	return room, nil
}

// EnsureRoom returns the active room, creating it with default settings when the id is unused.
// The boolean reports whether the room was created by this call.
func (s *roomService) EnsureRoom(ctx context.Context, roomID string, creator models.Actor) (models.Room, bool, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return models.Room{}, false, err
	}

	if _, err := s.rooms.FindRoom(ctx, roomID); err == nil {
		return models.Room{}, false, ErrRoomUnavailable
	} else if !errors.Is(err, repository.ErrNotFound) {
		return models.Room{}, false, err
	}

	room = s.newRoom(roomID, roomID, "", 0, models.DefaultRoomSettings(), creator)
	if err := s.rooms.InsertRoom(ctx, &room); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			existing, getErr := s.GetRoom(ctx, roomID)
			return existing, false, getErr
		}
		return models.Room{}, false, err
	}

	s.logger.Info().Str("room_id", roomID).Msg("room created on first join")
	return room, true, nil
}

func (s *roomService) newRoom(roomID, name, description string, maxParticipants int, settings models.RoomSettings, creator models.Actor) models.Room {
	now := s.now()
	if creator.UserID == "" {
		creator = models.SystemActor()
	}
	return models.Room{
		RoomID:            roomID,
		RoomName:          name,
		Description:       description,
		CreatedByUserID:   creator.UserID,
		CreatedByUsername: creator.Username,
		IsActive:          true,
		MaxParticipants:   models.ClampMaxParticipants(maxParticipants),
		Participants:      datatypes.JSONSlice[models.ParticipantPresence]{},
		ChatMessages:      datatypes.JSONSlice[models.ChatMessage]{},
		CodeDocument:      datatypes.NewJSONType(models.NewDocument(models.DefaultCodeLanguage)),
		NotesDocument:     datatypes.NewJSONType(models.NewDocument("")),
		CanvasDocument:    datatypes.NewJSONType(models.NewDocument("")),
		Settings:          datatypes.NewJSONType(settings),
		CreatedAt:         now,
		LastActivityAt:    now,
	}
}

func (s *roomService) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	room, err := s.rooms.FindActiveRoom(ctx, roomID)
	return room, s.notFound(err)
}

func (s *roomService) ListRooms(ctx context.Context, query dto.RoomListQuery) (RoomPage, error) {
	if err := s.validator.Struct(query); err != nil {
		return RoomPage{}, err
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	rooms, total, err := s.rooms.ListActiveRooms(ctx, repository.RoomFilter{
		Page:      query.Page,
		Limit:     query.Limit,
		Search:    query.Search,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return RoomPage{}, err
	}

	return RoomPage{Rooms: rooms, Page: query.Page, Limit: query.Limit, Total: total}, nil
}

func (s *roomService) UpdateRoom(ctx context.Context, roomID string, req dto.RoomUpdateRequest, requester Requester) (models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Room{}, err
	}

	current, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if err := authorizeOwner(current, requester); err != nil {
		return models.Room{}, err
	}

	var name *string
	if req.RoomName != nil {
		cleaned := s.cleanText(*req.RoomName)
		if cleaned != "" && !strings.EqualFold(cleaned, current.RoomName) {
			holder, err := s.rooms.FindActiveRoomByName(ctx, cleaned)
			if err == nil && holder.RoomID != roomID {
				return models.Room{}, ErrRoomNameTaken
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return models.Room{}, err
			}
		}
		if cleaned != "" {
			name = &cleaned
		}
	}

	now := s.now()
	room, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		if name != nil {
			room.RoomName = *name
		}
		if req.Description != nil {
			room.Description = s.cleanText(*req.Description)
		}
		if req.MaxParticipants != nil {
			capacity := models.ClampMaxParticipants(*req.MaxParticipants)
			if capacity < room.CurrentParticipants {
				return ErrMaxBelowCurrent
			}
			room.MaxParticipants = capacity
		}
		if req.Settings != nil {
			room.Settings = datatypes.NewJSONType(req.Settings.Apply(room.Settings.Data()))
		}
		room.LastActivityAt = now
		return nil
	})
	return room, s.notFound(err)
}

func (s *roomService) DeactivateRoom(ctx context.Context, roomID string, requester Requester) error {
	current, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := authorizeOwner(current, requester); err != nil {
		return err
	}

	now := s.now()
	_, err = s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		room.IsActive = false
		room.LastActivityAt = now
		return nil
	})
	if err == nil {
		s.logger.Info().Str("room_id", roomID).Str("by", requester.Actor.UserID).Msg("room deactivated")
	}
	return s.notFound(err)
}

// AddParticipant admits or reactivates a presence. The capacity check happens inside the
// optimistic write so concurrent joins cannot overshoot maxParticipants. A presence that is
// still active keeps its seat; an inactive one has to win a free seat again.
func (s *roomService) AddParticipant(ctx context.Context, roomID string, presence models.ParticipantPresence) (models.Room, error) {
	ctx, span := s.tracer.Start(ctx, "room.add_participant", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("room.user_id", presence.UserID),
	))
	defer span.End()

	now := s.now()
	room, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		if existing, idx, found := room.Participant(presence.UserID); found {
			if !existing.IsActive && !hasFreeSeat(*room) {
				return ErrRoomFull
			}
			existing.Username = presence.Username
			existing.SessionID = presence.SessionID
			existing.Color = presence.Color
			existing.Accessibility = presence.Accessibility
			existing.IsActive = true
			existing.LastActivityAt = now
			room.Participants[idx] = existing
		} else {
			if !hasFreeSeat(*room) {
				return ErrRoomFull
			}
			presence.IsActive = true
			presence.JoinedAt = now
			presence.LastActivityAt = now
			room.Participants = append(room.Participants, presence)
		}

		room.PruneParticipants(now.Add(-PresenceRetention))
		room.Recount()
		room.LastActivityAt = now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Room{}, s.notFound(err)
	}
	return room, nil
}

// RemoveParticipant deactivates the presence of userID. When sessionID is set, a presence
// already re-bound to a different session is left untouched and ErrSessionReplaced is returned.
func (s *roomService) RemoveParticipant(ctx context.Context, roomID, userID, sessionID string) (models.Room, error) {
	now := s.now()
	room, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		existing, idx, found := room.Participant(userID)
		if !found {
			return ErrNotParticipant
		}
		if sessionID != "" && existing.SessionID != sessionID {
			return ErrSessionReplaced
		}

		existing.IsActive = false
		existing.LastActivityAt = now
		room.Participants[idx] = existing

		room.PruneParticipants(now.Add(-PresenceRetention))
		room.Recount()
		room.LastActivityAt = now
		return nil
	})
	return room, s.notFound(err)
}

func hasFreeSeat(room models.Room) bool {
	return len(room.ActiveParticipants()) < room.MaxParticipants
}

func (s *roomService) UpdatePresence(ctx context.Context, roomID, userID, sessionID string, update PresenceUpdate) (models.ParticipantPresence, error) {
	if update.CursorPosition != nil && (update.CursorPosition.X < 0 || update.CursorPosition.Y < 0) {
		return models.ParticipantPresence{}, ErrInvalidCursor
	}

	now := s.now()
	var updated models.ParticipantPresence
	_, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		existing, idx, found := room.Participant(userID)
		if !found {
			return ErrNotParticipant
		}
		if sessionID != "" && existing.SessionID != sessionID {
			return ErrSessionReplaced
		}

		if update.CursorPosition != nil {
			existing.CursorPosition = *update.CursorPosition
		}
		if update.IsActive != nil {
			if *update.IsActive && !existing.IsActive && !hasFreeSeat(*room) {
				return ErrRoomFull
			}
			existing.IsActive = *update.IsActive
		}
		existing.LastActivityAt = now
		room.Participants[idx] = existing

		room.Recount()
		room.LastActivityAt = now
		updated = existing
		return nil
	})
	if err != nil {
		return models.ParticipantPresence{}, s.notFound(err)
	}
	return updated, nil
}

// AppendChatMessage stamps id and timestamp on the message and keeps the last 100 entries.
func (s *roomService) AppendChatMessage(ctx context.Context, roomID string, input ChatInput) (models.ChatMessage, error) {
	text := strings.TrimSpace(input.Message)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxChatMessageRune {
		return models.ChatMessage{}, ErrMessageTooLong
	}
	text = s.cleanText(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !lo.Contains([]string{models.MessageTypeText, models.MessageTypeSystem, models.MessageTypeAnnouncement}, messageType) {
		return models.ChatMessage{}, ErrInvalidMessageType
	}

	ctx, span := s.tracer.Start(ctx, "room.append_chat", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("chat.type", messageType),
	))
	defer span.End()

	now := s.now()
	message := models.ChatMessage{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Username:    input.Username,
		Message:     text,
		MessageType: messageType,
		Timestamp:   now,
	}

	_, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		if messageType != models.MessageTypeSystem {
			if !room.Settings.Data().AllowChat {
				return ErrFeatureDisabled
			}
			if p, _, found := room.Participant(input.UserID); !found || !p.IsActive {
				return ErrNotParticipant
			}
		}
		room.AppendChat(message, models.ChatRetention)
		room.LastActivityAt = now
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.ChatMessage{}, s.notFound(err)
	}
	return message, nil
}

func (s *roomService) UpdateCodeDocument(ctx context.Context, roomID, content, language string, editor models.Actor) (models.Document, error) {
	if len(content) > MaxCodeBytes {
		return models.Document{}, ErrContentTooLarge
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language != "" && !lo.Contains(models.CodeLanguages, language) {
		return models.Document{}, ErrInvalidLanguage
	}

	return s.replaceDocument(ctx, roomID, "code", editor, func(room *models.Room) (models.Document, error) {
		if !room.Settings.Data().AllowCodeEditing {
			return models.Document{}, ErrFeatureDisabled
		}
		doc := room.CodeDocument.Data()
		if !doc.Initialised() {
			doc = models.NewDocument(models.DefaultCodeLanguage)
		}
		doc.Content = content
		if language != "" {
			doc.Language = language
		}
		return doc, nil
	}, func(room *models.Room, doc models.Document) {
		room.CodeDocument = datatypes.NewJSONType(doc)
	})
}

func (s *roomService) UpdateNotesDocument(ctx context.Context, roomID, content string, editor models.Actor) (models.Document, error) {
	if len(content) > MaxNotesBytes {
		return models.Document{}, ErrContentTooLarge
	}

	return s.replaceDocument(ctx, roomID, "notes", editor, func(room *models.Room) (models.Document, error) {
		if !room.Settings.Data().AllowNotesEditing {
			return models.Document{}, ErrFeatureDisabled
		}
		doc := room.NotesDocument.Data()
		if !doc.Initialised() {
			doc = models.NewDocument("")
		}
		doc.Content = content
		return doc, nil
	}, func(room *models.Room, doc models.Document) {
		room.NotesDocument = datatypes.NewJSONType(doc)
	})
}

func (s *roomService) UpdateCanvasDocument(ctx context.Context, roomID string, data json.RawMessage, editor models.Actor) (models.Document, error) {
	if len(data) > MaxCanvasBytes {
		return models.Document{}, ErrContentTooLarge
	}
	if len(data) == 0 || !json.Valid(data) {
		return models.Document{}, ErrInvalidCanvas
	}

	return s.replaceDocument(ctx, roomID, "canvas", editor, func(room *models.Room) (models.Document, error) {
		if !room.Settings.Data().AllowCanvasDrawing {
			return models.Document{}, ErrFeatureDisabled
		}
		doc := room.CanvasDocument.Data()
		if !doc.Initialised() {
			doc = models.NewDocument("")
		}
		doc.Data = data
		return doc, nil
	}, func(room *models.Room, doc models.Document) {
		room.CanvasDocument = datatypes.NewJSONType(doc)
	})
}

// replaceDocument performs a whole-document write: prepare builds the next content from the
// current room, then version, modification time and editor are stamped before storing.
func (s *roomService) replaceDocument(
	ctx context.Context,
	roomID, kind string,
	editor models.Actor,
	prepare func(room *models.Room) (models.Document, error),
	store func(room *models.Room, doc models.Document),
) (models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "room.replace_document", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("document.kind", kind),
	))
	defer span.End()

	now := s.now()
	var written models.Document
	_, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		if p, _, found := room.Participant(editor.UserID); !found || !p.IsActive {
			return ErrNotParticipant
		}

		doc, err := prepare(room)
		if err != nil {
			return err
		}
		doc.Version++
		doc.LastModifiedAt = &now
		by := editor
		doc.LastModifiedBy = &by

		store(room, doc)
		room.LastActivityAt = now
		written = doc
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Document{}, s.notFound(err)
	}
	return written, nil
}

func (s *roomService) ListActiveParticipants(ctx context.Context, roomID string) ([]models.ParticipantPresence, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.ActiveParticipants(), nil
}

func (s *roomService) GetChatTail(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		n = DefaultChatTail
	}
	if n > models.ChatRetention {
		n = models.ChatRetention
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.ChatTail(n), nil
}

// PruneParticipants evicts inactive presences older than cutoff. Pruning is housekeeping and
// leaves lastActivityAt untouched so it never keeps an idle room alive.
func (s *roomService) PruneParticipants(ctx context.Context, roomID string, cutoff time.Time) (int, error) {
	removed := 0
	_, err := s.rooms.UpdateRoom(ctx, roomID, func(room *models.Room) error {
		removed = room.PruneParticipants(cutoff)
		if removed == 0 {
			return errNothingToPrune
		}
		room.Recount()
		return nil
	})
	if errors.Is(err, errNothingToPrune) {
		return 0, nil
	}
	if err != nil {
		return 0, s.notFound(err)
	}
	return removed, nil
}

func (s *roomService) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.rooms.MarkRoomsInactive(ctx, cutoff)
}

func (s *roomService) ListLiveRoomIDs(ctx context.Context) ([]string, error) {
	return s.rooms.ListActiveRoomIDs(ctx)
}

func (s *roomService) cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *roomService) notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}

func authorizeOwner(room models.Room, requester Requester) error {
	if requester.Admin {
		return nil
	}
	if requester.Actor.UserID != "" && requester.Actor.UserID == room.CreatedByUserID {
		return nil
	}
	return ErrNotRoomOwner
}
