package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/observability"
	"github.com/noah-isme/collab-room-api/internal/repository"
	"github.com/noah-isme/collab-room-api/internal/service"
)

// DefaultChatHistorySize is the number of messages sent after a join.
const DefaultChatHistorySize = 20

var participantPalette = []string{
	"#EF4444", "#F97316", "#F59E0B", "#10B981", "#14B8A6",
	"#06B6D4", "#3B82F6", "#6366F1", "#8B5CF6", "#EC4899",
}

// Config tunes the engine.
type Config struct {
	AutoCreateRooms  bool
	ChatHistorySize  int
	PresenceInterval time.Duration
	// Development exposes internal error details in error events.
	Development bool
}

// Engine owns the session registry and runs the per-connection event state machine.
type Engine struct {
	rooms     service.RoomService
	identity  service.IdentityService
	bus       *Bus
	validator *validator.Validate
	cfg       Config
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]string
}

type eventError struct {
	code    string
	message string
}

func reject(code, message string) *eventError {
	return &eventError{code: code, message: message}
}

// NewEngine constructs the session engine.
func NewEngine(rooms service.RoomService, identity service.IdentityService, bus *Bus, validate *validator.Validate, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.ChatHistorySize <= 0 {
		cfg.ChatHistorySize = DefaultChatHistorySize
	}
	if cfg.PresenceInterval <= 0 {
		cfg.PresenceInterval = DefaultPresenceInterval
	}
	return &Engine{
		rooms:     rooms,
		identity:  identity,
		bus:       bus,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "session_engine").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/collab-room-api/internal/realtime"),
		now:       func() time.Time { return time.Now().UTC() },
		sessions:  make(map[string]*Session),
		byUser:    make(map[string]string),
	}
}

// Connect registers a new transport and returns its session in the NEW state.
func (e *Engine) Connect(sub Subscriber) *Session {
	session := newSession(sub, e.cfg.PresenceInterval, e.now())

	e.mu.Lock()
	e.sessions[session.id] = session
	e.mu.Unlock()

	e.bus.Register(sub)
	observability.SocketConnectionsTotal().Inc()
	observability.SocketConnectionsActive().Inc()
	e.logger.Debug().Str("session_id", session.id).Msg("session connected")
	return session
}

// Session looks up a connected session.
func (e *Engine) Session(sessionID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[sessionID]
	return session, ok
}

// SessionCount returns the number of connected sessions on this node.
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Handle decodes one client frame and processes it.
func (e *Engine) Handle(ctx context.Context, session *Session, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Event) == "" {
		e.sendError(session, "", reject(CodeInvalidData, "frames must be JSON objects with an event name"))
		return
	}
	e.HandleEvent(ctx, session, in)
}

// HandleEvent processes one inbound event. Events of a session run strictly one at a time and
// persistence is detached from the caller's cancellation so a closing connection never
// interrupts a write half-way.
func (e *Engine) HandleEvent(ctx context.Context, session *Session, in Inbound) {
	ctx = context.WithoutCancel(ctx)

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed.Load() {
		return
	}

	ctx, span := e.tracer.Start(ctx, "session."+in.Event, trace.WithAttributes(
		attribute.String("session.id", session.id),
	))
	defer span.End()

	var failure *eventError
	switch in.Event {
	case EventJoinRoom:
		failure = e.joinRoom(ctx, session, in.Data)
	case EventLeaveRoom:
		failure = e.leave(ctx, session, false)
	case EventCodeChange:
		failure = e.codeChange(ctx, session, in.Data)
	case EventNoteChange:
		failure = e.noteChange(ctx, session, in.Data)
	case EventDrawEvent:
		failure = e.drawEvent(ctx, session, in.Data)
	case EventChatMessage:
		failure = e.chatMessage(ctx, session, in.Data)
	case EventPresenceUpdate:
		failure = e.presenceUpdate(ctx, session, in.Data)
	case EventPing:
		e.bus.Send(session.id, NewEnvelope(EventPong, PongPayload{Timestamp: e.now()}))
	default:
		failure = reject(CodeInvalidData, "unknown event: "+in.Event)
	}

	if failure != nil {
		span.SetAttributes(attribute.String("session.error_code", failure.code))
		e.sendError(session, in.Event, failure)
		return
	}
	observability.SocketEvents().WithLabelValues(metricEvent(in.Event), "ok").Inc()
}

// Disconnect runs leave semantics for a closed transport and drops the session.
func (e *Engine) Disconnect(ctx context.Context, session *Session) {
	ctx = context.WithoutCancel(ctx)

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed.Swap(true) {
		return
	}
	session.presence.stop()
	if failure := e.leave(ctx, session, true); failure != nil {
		e.logger.Warn().Str("session_id", session.id).Str("code", failure.code).Msg(failure.message)
	}

	e.mu.Lock()
	delete(e.sessions, session.id)
	e.mu.Unlock()

	e.bus.Unregister(session.id)
	observability.SocketConnectionsActive().Dec()
	e.logger.Debug().Str("session_id", session.id).Msg("session disconnected")
}

func (e *Engine) joinRoom(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	var payload JoinRoomPayload
	if err := decodePayload(data, &payload); err != nil {
		return reject(CodeInvalidData, "joinRoom requires roomId and username")
	}
	payload.RoomID = strings.TrimSpace(payload.RoomID)
	payload.Username = strings.TrimSpace(payload.Username)
	if err := e.validator.Struct(payload); err != nil {
		return reject(CodeInvalidData, "roomId must be 1-64 letters, digits, '-' or '_'")
	}
	if !dto.ValidUsername(payload.Username) {
		return reject(CodeInvalidUsername, service.ErrInvalidUsername.Error())
	}
	if session.Info().InRoom() {
		return reject(CodeJoinError, "already in a room, leave it first")
	}

	room, err := e.rooms.GetRoom(ctx, payload.RoomID)
	exists := err == nil
	switch {
	case exists:
	case errors.Is(err, service.ErrRoomNotFound):
		if !e.cfg.AutoCreateRooms {
			return reject(CodeJoinError, service.ErrRoomNotFound.Error())
		}
	default:
		return reject(CodeJoinError, e.describe(err, "failed to join room"))
	}

	allowCreate := !exists || room.Settings.Data().AllowAnonymous
	user, err := e.identity.ResolveForSession(ctx, payload.Username, payload.Preferences, session.id, allowCreate)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUsername) {
			return reject(CodeInvalidUsername, err.Error())
		}
		return reject(CodeJoinError, e.describe(err, "failed to resolve user"))
	}

	if !exists {
		room, _, err = e.rooms.EnsureRoom(ctx, payload.RoomID, user.Actor())
		if err != nil {
			return reject(CodeJoinError, e.describe(err, "failed to create room"))
		}
	}

	color := colorFor(user)
	presence := models.ParticipantPresence{
		UserID:        user.UserID,
		Username:      user.Username,
		SessionID:     session.id,
		Color:         color,
		Accessibility: user.Preferences.Data().Accessibility,
	}
	room, err = e.admit(ctx, payload.RoomID, presence)
	if err != nil {
		if errors.Is(err, service.ErrRoomFull) {
			return reject(CodeRoomFull, err.Error())
		}
		return reject(CodeJoinError, e.describe(err, "failed to join room"))
	}

	if previous := e.claimUser(user.UserID, session); previous != nil {
		e.evict(ctx, previous, payload.RoomID)
	}

	joinedAt := e.now()
	session.bind(user.UserID, payload.RoomID, user.Username, color, joinedAt)
	e.bus.Subscribe(payload.RoomID, session.sub)

	if _, err := e.identity.JoinRoom(ctx, user.UserID, payload.RoomID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.UserID).Msg("failed to record room join")
	}

	e.bus.Send(session.id, NewEnvelope(EventRoomJoined, roomJoinedPayload(room, session.Info())))

	var joined *dto.ParticipantResponse
	if p, _, found := room.Participant(user.UserID); found {
		response := dto.NewParticipantResponse(p)
		joined = &response
	}
	e.bus.Publish(ctx, payload.RoomID, NewEnvelope(EventUserJoined, PeerPayload{
		RoomID:              payload.RoomID,
		UserID:              user.UserID,
		Username:            user.Username,
		Participant:         joined,
		CurrentParticipants: room.CurrentParticipants,
	}), session.id)

	e.bus.Send(session.id, NewEnvelope(EventChatHistory, ChatHistoryPayload{
		RoomID:   payload.RoomID,
		Messages: dto.NewChatMessageResponseSlice(room.ChatTail(e.cfg.ChatHistorySize)),
	}))

	e.systemMessage(ctx, room, user.Username+" joined the room")

	e.logger.Info().
		Str("session_id", session.id).
		Str("user_id", user.UserID).
		Str("room_id", payload.RoomID).
		Msg("user joined room")
	return nil
}

// admit retries the admission once when the optimistic retry budget was exhausted.
func (e *Engine) admit(ctx context.Context, roomID string, presence models.ParticipantPresence) (models.Room, error) {
	room, err := e.rooms.AddParticipant(ctx, roomID, presence)
	if errors.Is(err, repository.ErrConflict) {
		e.logger.Debug().Str("room_id", roomID).Msg("retrying join after conflict")
		room, err = e.rooms.AddParticipant(ctx, roomID, presence)
	}
	return room, err
}

// claimUser binds userID to session and returns the local session previously bound to it.
func (e *Engine) claimUser(userID string, session *Session) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	previousID := e.byUser[userID]
	e.byUser[userID] = session.id
	if previousID == "" || previousID == session.id {
		return nil
	}
	return e.sessions[previousID]
}

// releaseUser drops the user binding if it still points at session.
func (e *Engine) releaseUser(userID string, session *Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byUser[userID] != session.id {
		return false
	}
	delete(e.byUser, userID)
	return true
}

// evict unbinds a session whose user was taken over by a newer connection. The old
// connection stays open in the NEW state.
func (e *Engine) evict(ctx context.Context, previous *Session, newRoomID string) {
	info, ok := previous.unbind()
	if !ok {
		return
	}
	e.bus.Unsubscribe(info.RoomID, previous.id)

	if info.RoomID != newRoomID {
		room, err := e.rooms.RemoveParticipant(ctx, info.RoomID, info.UserID, previous.id)
		if err == nil {
			e.bus.Publish(ctx, info.RoomID, NewEnvelope(EventUserLeft, PeerPayload{
				RoomID:              info.RoomID,
				UserID:              info.UserID,
				Username:            info.Username,
				CurrentParticipants: room.CurrentParticipants,
			}), previous.id)
		} else {
			e.logger.Debug().Err(err).Str("room_id", info.RoomID).Msg("replaced presence already gone")
		}
		e.recordMinutes(ctx, info)
	}

	e.bus.Send(previous.id, NewEnvelope(EventError, ErrorPayload{
		Message: "session replaced by a newer connection",
		Code:    CodeJoinError,
		Event:   EventJoinRoom,
	}))
	e.logger.Info().
		Str("session_id", previous.id).
		Str("user_id", info.UserID).
		Msg("session replaced by a newer connection")
}

// leave implements leaveRoom and the disconnect path.
func (e *Engine) leave(ctx context.Context, session *Session, disconnected bool) *eventError {
	info, ok := session.unbind()
	if !ok {
		if disconnected {
			return nil
		}
		return reject(CodeNotInRoom, "not in a room")
	}

	e.bus.Unsubscribe(info.RoomID, session.id)
	owned := e.releaseUser(info.UserID, session)

	room, err := e.rooms.RemoveParticipant(ctx, info.RoomID, info.UserID, session.id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionReplaced),
			errors.Is(err, service.ErrNotParticipant),
			errors.Is(err, service.ErrRoomNotFound):
			e.logger.Debug().Err(err).Str("room_id", info.RoomID).Msg("presence already released")
		default:
			e.logger.Error().Err(err).Str("room_id", info.RoomID).Str("user_id", info.UserID).Msg("failed to remove participant")
		}
		return nil
	}

	if owned {
		if err := e.identity.LeaveRoom(ctx, info.UserID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", info.UserID).Msg("failed to record room leave")
		}
		e.recordMinutes(ctx, info)
	}

	event := EventUserLeft
	if disconnected {
		event = EventUserDisconnected
	}
	e.bus.Publish(ctx, info.RoomID, NewEnvelope(event, PeerPayload{
		RoomID:              info.RoomID,
		UserID:              info.UserID,
		Username:            info.Username,
		CurrentParticipants: room.CurrentParticipants,
	}), session.id)

	e.systemMessage(ctx, room, info.Username+" left the room")

	e.logger.Info().
		Str("session_id", session.id).
		Str("user_id", info.UserID).
		Str("room_id", info.RoomID).
		Bool("disconnected", disconnected).
		Msg("user left room")
	return nil
}

func (e *Engine) recordMinutes(ctx context.Context, info SessionInfo) {
	minutes := int(e.now().Sub(info.JoinedAt) / time.Minute)
	if minutes <= 0 {
		return
	}
	if _, err := e.identity.AddMinutes(ctx, info.UserID, minutes); err != nil {
		e.logger.Warn().Err(err).Str("user_id", info.UserID).Msg("failed to record time in room")
	}
}

// systemMessage appends a server-authored chat line and delivers it to every member.
func (e *Engine) systemMessage(ctx context.Context, room models.Room, text string) {
	if !room.Settings.Data().AllowChat {
		return
	}
	message, err := e.rooms.AppendChatMessage(ctx, room.RoomID, service.ChatInput{
		UserID:      models.SystemUserID,
		Username:    models.SystemUsername,
		Message:     text,
		MessageType: models.MessageTypeSystem,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("room_id", room.RoomID).Msg("failed to append system message")
		return
	}
	e.bus.BroadcastAll(ctx, room.RoomID, NewEnvelope(EventChatMessage, ChatBroadcastPayload{
		ChatMessageResponse: dto.NewChatMessageResponse(message),
		RoomID:              room.RoomID,
	}))
}

func (e *Engine) sendError(session *Session, event string, failure *eventError) {
	e.bus.Send(session.id, NewEnvelope(EventError, ErrorPayload{
		Message: failure.message,
		Code:    failure.code,
		Event:   event,
	}))
	observability.SocketEvents().WithLabelValues(metricEvent(event), "error").Inc()
	e.logger.Debug().
		Str("session_id", session.id).
		Str("event", event).
		Str("code", failure.code).
		Msg(failure.message)
}

// describe returns a message safe to show the client.
func (e *Engine) describe(err error, fallback string) string {
	for _, known := range []error{
		service.ErrRoomNotFound, service.ErrRoomUnavailable, service.ErrRoomFull,
		service.ErrFeatureDisabled, service.ErrNotParticipant, service.ErrSessionReplaced,
		service.ErrInvalidLanguage, service.ErrContentTooLarge, service.ErrInvalidCanvas,
		service.ErrEmptyMessage, service.ErrMessageTooLong, service.ErrInvalidMessageType,
		service.ErrInvalidCursor, service.ErrRegistrationRequired, service.ErrInvalidUsername,
		service.ErrUsernameTaken,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	if errors.Is(err, repository.ErrConflict) {
		return "the room changed concurrently, please retry"
	}
	if errors.Is(err, repository.ErrUnavailable) {
		return "service temporarily unavailable"
	}
	if e.cfg.Development {
		return fallback + ": " + err.Error()
	}
	return fallback
}

func (e *Engine) metadata(info SessionInfo, action string, counters map[string]int) Metadata {
	meta := Metadata{
		"author":     info.Username,
		"userId":     info.UserID,
		"actionType": action,
		"timestamp":  e.now().Unix(),
	}
	for key, value := range counters {
		meta[key] = value
	}
	return meta
}

func roomJoinedPayload(room models.Room, info SessionInfo) RoomJoinedPayload {
	code := room.CodeDocument.Data()
	notes := room.NotesDocument.Data()
	canvas := room.CanvasDocument.Data()

	language := code.Language
	if language == "" {
		language = models.DefaultCodeLanguage
	}

	return RoomJoinedPayload{
		RoomID:              room.RoomID,
		RoomName:            room.RoomName,
		Description:         room.Description,
		CreatedBy:           room.CreatedBy(),
		UserID:              info.UserID,
		Username:            info.Username,
		SessionID:           info.ConnectionID,
		Color:               info.Color,
		Settings:            room.Settings.Data(),
		MaxParticipants:     room.MaxParticipants,
		CurrentParticipants: room.CurrentParticipants,
		Participants:        dto.NewParticipantResponseSlice(room.ActiveParticipants()),
		CodeContent:         code.Content,
		CodeLanguage:        language,
		CodeVersion:         code.Version,
		NotesContent:        notes.Content,
		NotesVersion:        notes.Version,
		CanvasData:          canvas.Data,
		CanvasVersion:       canvas.Version,
	}
}

// colorFor keeps a colour the user picked and otherwise derives one from the user id.
func colorFor(user models.User) string {
	appearance := user.Preferences.Data().Appearance
	if appearance.CursorColorChosen && appearance.CursorColor != "" {
		return appearance.CursorColor
	}
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(user.UserID))
	return participantPalette[hash.Sum32()%uint32(len(participantPalette))]
}

func decodePayload(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, target)
}

func metricEvent(event string) string {
	switch event {
	case EventJoinRoom, EventLeaveRoom, EventCodeChange, EventNoteChange, EventDrawEvent,
		EventChatMessage, EventPresenceUpdate, EventPing:
		return event
	default:
		return "unknown"
	}
}
