package realtime

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
)

// Inbound event names.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventCodeChange     = "code-change"
	EventNoteChange     = "note-change"
	EventDrawEvent      = "draw-event"
	EventChatMessage    = "chat-message"
	EventPresenceUpdate = "presence-update"
	EventPing           = "ping"
	EventDisconnect     = "disconnect"
)

// Outbound event names.
const (
	EventRoomJoined       = "roomJoined"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventUserDisconnected = "userDisconnected"
	EventChatHistory      = "chatHistory"
	EventCodeChanged      = "code-changed"
	EventNoteChanged      = "note-changed"
	EventDrawingUpdated   = "drawing-updated"
	EventPresenceUpdated  = "presence-updated"
	EventPong             = "pong"
	EventError            = "error"
)

// Error codes carried by the error event.
const (
	CodeInvalidData     = "INVALID_DATA"
	CodeInvalidUsername = "INVALID_USERNAME"
	CodeRoomFull        = "ROOM_FULL"
	CodeNotInRoom       = "NOT_IN_ROOM"
	CodeEmptyMessage    = "EMPTY_MESSAGE"
	CodeMessageTooLong  = "MESSAGE_TOO_LONG"
	CodeCodeUpdateError = "CODE_UPDATE_ERROR"
	CodeNoteUpdateError = "NOTE_UPDATE_ERROR"
	CodeDrawUpdateError = "DRAW_UPDATE_ERROR"
	CodeChatError       = "CHAT_ERROR"
	CodeJoinError       = "JOIN_ERROR"
)

// Inbound is the client frame: {"event": "...", "data": {...}}.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope is the server frame. Timestamp is always stamped by the server.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope encodes payload into an outbound frame.
func NewEnvelope(event string, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil || payload == nil {
		data = []byte("{}")
	}
	return Envelope{Event: event, Data: data, Timestamp: time.Now().UTC()}
}

// Decode unmarshals the envelope data into target.
func (e Envelope) Decode(target interface{}) error {
	return json.Unmarshal(e.Data, target)
}

// Metadata is stamped by the server on every mutating broadcast; client values are ignored.
type Metadata map[string]interface{}

// JoinRoomPayload is the joinRoom request.
type JoinRoomPayload struct {
	RoomID      string                 `json:"roomId" validate:"required,roomid"`
	Username    string                 `json:"username"`
	Preferences map[string]interface{} `json:"preferences"`
}

// CodeChangePayload is the code-change request.
type CodeChangePayload struct {
	Content        *string                `json:"content" validate:"required"`
	Language       string                 `json:"language" validate:"omitempty,max=32"`
	CursorPosition *models.CursorPosition `json:"cursorPosition"`
}

// NoteChangePayload is the note-change request.
type NoteChangePayload struct {
	Content *string `json:"content" validate:"required"`
}

// DrawEventPayload is the draw-event request. DrawingData is opaque to the server.
type DrawEventPayload struct {
	DrawingData json.RawMessage `json:"drawingData"`
	Action      string          `json:"action" validate:"omitempty,max=64"`
}

// ChatMessagePayload is the chat-message request.
type ChatMessagePayload struct {
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
}

// PresenceUpdatePayload is the presence-update request.
type PresenceUpdatePayload struct {
	CursorPosition *models.CursorPosition `json:"cursorPosition"`
	IsActive       *bool                  `json:"isActive"`
}

// RoomJoinedPayload is the snapshot sent to a session after a successful join.
type RoomJoinedPayload struct {
	RoomID              string                    `json:"roomId"`
	RoomName            string                    `json:"roomName"`
	Description         string                    `json:"description"`
	CreatedBy           models.Actor              `json:"createdBy"`
	UserID              string                    `json:"userId"`
	Username            string                    `json:"username"`
	SessionID           string                    `json:"sessionId"`
	Color               string                    `json:"color"`
	Settings            models.RoomSettings       `json:"settings"`
	MaxParticipants     int                       `json:"maxParticipants"`
	CurrentParticipants int                       `json:"currentParticipants"`
	Participants        []dto.ParticipantResponse `json:"participants"`
	CodeContent         string                    `json:"codeContent"`
	CodeLanguage        string                    `json:"codeLanguage"`
	CodeVersion         int64                     `json:"codeVersion"`
	NotesContent        string                    `json:"notesContent"`
	NotesVersion        int64                     `json:"notesVersion"`
	CanvasData          json.RawMessage           `json:"canvasData"`
	CanvasVersion       int64                     `json:"canvasVersion"`
}

// PeerPayload announces a peer joining, leaving or disconnecting.
type PeerPayload struct {
	RoomID              string                   `json:"roomId"`
	UserID              string                   `json:"userId"`
	Username            string                   `json:"username"`
	Participant         *dto.ParticipantResponse `json:"participant,omitempty"`
	CurrentParticipants int                      `json:"currentParticipants"`
}

// ChatHistoryPayload carries the recent chat tail.
type ChatHistoryPayload struct {
	RoomID   string                    `json:"roomId"`
	Messages []dto.ChatMessageResponse `json:"messages"`
}

// CodeChangedPayload is broadcast after a code document write.
type CodeChangedPayload struct {
	Content        string                 `json:"content"`
	Language       string                 `json:"language"`
	Version        int64                  `json:"version"`
	UserID         string                 `json:"userId"`
	Username       string                 `json:"username"`
	CursorPosition *models.CursorPosition `json:"cursorPosition,omitempty"`
	Metadata       Metadata               `json:"metadata"`
}

// NoteChangedPayload is broadcast after a notes document write.
type NoteChangedPayload struct {
	Content  string   `json:"content"`
	Version  int64    `json:"version"`
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Metadata Metadata `json:"metadata"`
}

// DrawingUpdatedPayload is broadcast after a canvas write.
type DrawingUpdatedPayload struct {
	DrawingData json.RawMessage `json:"drawingData"`
	Action      string          `json:"action"`
	Version     int64           `json:"version"`
	UserID      string          `json:"userId"`
	Username    string          `json:"username"`
	Metadata    Metadata        `json:"metadata"`
}

// PresenceUpdatedPayload is broadcast after a coalesced presence write.
type PresenceUpdatedPayload struct {
	UserID         string                `json:"userId"`
	Username       string                `json:"username"`
	CursorPosition models.CursorPosition `json:"cursorPosition"`
	IsActive       bool                  `json:"isActive"`
	Color          string                `json:"color"`
	Metadata       Metadata              `json:"metadata"`
}

// ChatBroadcastPayload is a persisted chat message delivered to every member.
type ChatBroadcastPayload struct {
	dto.ChatMessageResponse
	RoomID   string   `json:"roomId"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// PongPayload answers ping.
type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a rejected event to the originating session.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
}
