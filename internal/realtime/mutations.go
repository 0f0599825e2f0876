package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/service"
)

func (e *Engine) codeChange(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	info := session.Info()
	if !info.InRoom() {
		return reject(CodeNotInRoom, "join a room first")
	}

	var payload CodeChangePayload
	if err := decodePayload(data, &payload); err != nil || e.validator.Struct(payload) != nil {
		return reject(CodeInvalidData, "code-change requires content")
	}
	if !validCursor(payload.CursorPosition) {
		return reject(CodeInvalidData, service.ErrInvalidCursor.Error())
	}

	doc, err := e.rooms.UpdateCodeDocument(ctx, info.RoomID, *payload.Content, payload.Language, actorOf(info))
	if err != nil {
		return e.mutationFailure(err, CodeCodeUpdateError, "failed to update code")
	}

	e.bus.Publish(ctx, info.RoomID, NewEnvelope(EventCodeChanged, CodeChangedPayload{
		Content:        doc.Content,
		Language:       doc.Language,
		Version:        doc.Version,
		UserID:         info.UserID,
		Username:       info.Username,
		CursorPosition: payload.CursorPosition,
		Metadata: e.metadata(info, "code-edit", map[string]int{
			"contentLength": utf8.RuneCountInString(doc.Content),
			"lineCount":     lineCount(doc.Content),
		}),
	}), session.id)
	return nil
}

func (e *Engine) noteChange(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	info := session.Info()
	if !info.InRoom() {
		return reject(CodeNotInRoom, "join a room first")
	}

	var payload NoteChangePayload
	if err := decodePayload(data, &payload); err != nil || e.validator.Struct(payload) != nil {
		return reject(CodeInvalidData, "note-change requires content")
	}

	doc, err := e.rooms.UpdateNotesDocument(ctx, info.RoomID, *payload.Content, actorOf(info))
	if err != nil {
		return e.mutationFailure(err, CodeNoteUpdateError, "failed to update notes")
	}

	e.bus.Publish(ctx, info.RoomID, NewEnvelope(EventNoteChanged, NoteChangedPayload{
		Content:  doc.Content,
		Version:  doc.Version,
		UserID:   info.UserID,
		Username: info.Username,
		Metadata: e.metadata(info, "note-edit", map[string]int{
			"contentLength": utf8.RuneCountInString(doc.Content),
			"wordCount":     len(strings.Fields(doc.Content)),
		}),
	}), session.id)
	return nil
}

func (e *Engine) drawEvent(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	info := session.Info()
	if !info.InRoom() {
		return reject(CodeNotInRoom, "join a room first")
	}

	var payload DrawEventPayload
	if err := decodePayload(data, &payload); err != nil || e.validator.Struct(payload) != nil {
		return reject(CodeInvalidData, "draw-event requires drawingData")
	}
	if len(payload.DrawingData) == 0 || string(payload.DrawingData) == "null" {
		return reject(CodeInvalidData, "draw-event requires drawingData")
	}

	doc, err := e.rooms.UpdateCanvasDocument(ctx, info.RoomID, payload.DrawingData, actorOf(info))
	if err != nil {
		return e.mutationFailure(err, CodeDrawUpdateError, "failed to update canvas")
	}

	action := payload.Action
	if action == "" {
		action = "draw"
	}
	e.bus.Publish(ctx, info.RoomID, NewEnvelope(EventDrawingUpdated, DrawingUpdatedPayload{
		DrawingData: doc.Data,
		Action:      action,
		Version:     doc.Version,
		UserID:      info.UserID,
		Username:    info.Username,
		Metadata: e.metadata(info, "canvas-"+action, map[string]int{
			"dataSize": len(doc.Data),
		}),
	}), session.id)
	return nil
}

func (e *Engine) chatMessage(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	info := session.Info()
	if !info.InRoom() {
		return reject(CodeNotInRoom, "join a room first")
	}

	var payload ChatMessagePayload
	if err := decodePayload(data, &payload); err != nil {
		return reject(CodeInvalidData, "chat-message requires a message")
	}
	text := strings.TrimSpace(payload.Message)
	if text == "" {
		return reject(CodeEmptyMessage, service.ErrEmptyMessage.Error())
	}
	if utf8.RuneCountInString(text) > service.MaxChatMessageRune {
		return reject(CodeMessageTooLong, service.ErrMessageTooLong.Error())
	}
	switch payload.MessageType {
	case "", models.MessageTypeText, models.MessageTypeAnnouncement:
	default:
		return reject(CodeInvalidData, service.ErrInvalidMessageType.Error())
	}

	message, err := e.rooms.AppendChatMessage(ctx, info.RoomID, service.ChatInput{
		UserID:      info.UserID,
		Username:    info.Username,
		Message:     text,
		MessageType: payload.MessageType,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			return reject(CodeEmptyMessage, err.Error())
		}
		return e.mutationFailure(err, CodeChatError, "failed to send message")
	}

	if err := e.identity.IncrementMessageCount(ctx, info.UserID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", info.UserID).Msg("failed to count chat message")
	}

	e.bus.BroadcastAll(ctx, info.RoomID, NewEnvelope(EventChatMessage, ChatBroadcastPayload{
		ChatMessageResponse: dto.NewChatMessageResponse(message),
		RoomID:              info.RoomID,
		Metadata: e.metadata(info, "chat-message", map[string]int{
			"messageLength": utf8.RuneCountInString(message.Message),
		}),
	}))
	return nil
}

func (e *Engine) presenceUpdate(ctx context.Context, session *Session, data json.RawMessage) *eventError {
	info := session.Info()
	if !info.InRoom() {
		return reject(CodeNotInRoom, "join a room first")
	}

	var payload PresenceUpdatePayload
	if err := decodePayload(data, &payload); err != nil {
		return reject(CodeInvalidData, "presence-update requires cursorPosition or isActive")
	}
	if payload.CursorPosition == nil && payload.IsActive == nil {
		return reject(CodeInvalidData, "presence-update requires cursorPosition or isActive")
	}
	if !validCursor(payload.CursorPosition) {
		return reject(CodeInvalidData, service.ErrInvalidCursor.Error())
	}

	update, now := session.presence.offer(payload, func() { e.flushPresence(session) })
	if !now {
		return nil
	}
	return e.applyPresence(ctx, session, info, update)
}

// flushPresence applies a parked presence update once the rate window reopens.
func (e *Engine) flushPresence(session *Session) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed.Load() {
		return
	}
	update, ok := session.presence.take(func() { e.flushPresence(session) })
	if !ok {
		return
	}
	info := session.Info()
	if !info.InRoom() {
		return
	}
	if failure := e.applyPresence(context.Background(), session, info, update); failure != nil {
		e.sendError(session, EventPresenceUpdate, failure)
	}
}

func (e *Engine) applyPresence(ctx context.Context, session *Session, info SessionInfo, update PresenceUpdatePayload) *eventError {
	presence, err := e.rooms.UpdatePresence(ctx, info.RoomID, info.UserID, session.id, service.PresenceUpdate{
		CursorPosition: update.CursorPosition,
		IsActive:       update.IsActive,
	})
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) || errors.Is(err, service.ErrSessionReplaced) || errors.Is(err, service.ErrRoomNotFound) {
			return reject(CodeNotInRoom, err.Error())
		}
		e.logger.Warn().Err(err).Str("room_id", info.RoomID).Msg("failed to update presence")
		return reject(CodeInvalidData, e.describe(err, "failed to update presence"))
	}

	e.bus.Publish(ctx, info.RoomID, NewEnvelope(EventPresenceUpdated, PresenceUpdatedPayload{
		UserID:         info.UserID,
		Username:       info.Username,
		CursorPosition: presence.CursorPosition,
		IsActive:       presence.IsActive,
		Color:          presence.Color,
		Metadata:       e.metadata(info, "presence-update", nil),
	}), session.id)
	return nil
}

// mutationFailure maps a persistence failure to the event's error code.
func (e *Engine) mutationFailure(err error, code, fallback string) *eventError {
	if errors.Is(err, service.ErrNotParticipant) || errors.Is(err, service.ErrSessionReplaced) || errors.Is(err, service.ErrRoomNotFound) {
		return reject(CodeNotInRoom, err.Error())
	}
	if !errors.Is(err, service.ErrFeatureDisabled) && !errors.Is(err, service.ErrContentTooLarge) {
		e.logger.Warn().Err(err).Str("code", code).Msg("mutation failed")
	}
	return reject(code, e.describe(err, fallback))
}

func actorOf(info SessionInfo) models.Actor {
	return models.Actor{UserID: info.UserID, Username: info.Username}
}

func validCursor(position *models.CursorPosition) bool {
	return position == nil || (position.X >= 0 && position.Y >= 0)
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
