package models

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// SystemUserID identifies server-originated actors. It never exists in the users table.
const (
	SystemUserID   = "system"
	SystemUsername = "System"
)

// Room limits.
const (
	MinParticipants        = 2
	MaxParticipantsCeiling = 100
	DefaultMaxParticipants = 50
	ChatRetention          = 100
)

// Chat message types.
const (
	MessageTypeText         = "text"
	MessageTypeSystem       = "system"
	MessageTypeAnnouncement = "announcement"
)

// DefaultCodeLanguage is used for freshly initialised code documents.
const DefaultCodeLanguage = "javascript"

// CodeLanguages enumerates the languages accepted by the code document.
var CodeLanguages = []string{
	"javascript", "typescript", "python", "java", "cpp", "c", "csharp", "go", "rust",
	"php", "ruby", "html", "css", "json", "markdown", "sql", "plaintext",
}

// Actor is a {userId, username} snapshot stored alongside room data.
type Actor struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// SystemActor returns the reserved actor used for server-created rooms.
func SystemActor() Actor {
	return Actor{UserID: SystemUserID, Username: SystemUsername}
}

// CursorPosition is a non-negative point on the shared surface.
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParticipantPresence is the authoritative record of a user inside a room.
type ParticipantPresence struct {
	UserID         string                   `json:"userId"`
	Username       string                   `json:"username"`
	SessionID      string                   `json:"sessionId"`
	IsActive       bool                     `json:"isActive"`
	CursorPosition CursorPosition           `json:"cursorPosition"`
	Color          string                   `json:"color"`
	Accessibility  AccessibilityPreferences `json:"accessibility"`
	JoinedAt       time.Time                `json:"joinedAt"`
	LastActivityAt time.Time                `json:"lastActivityAt"`
}

// ChatMessage is one entry of a room's bounded chat log.
type ChatMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Message     string    `json:"message"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
}

// Document is a whole-replacement buffer with a monotonically increasing version.
// Code and notes keep their text in Content; the canvas keeps an opaque JSON value in Data.
type Document struct {
	Content        string          `json:"content"`
	Data           json.RawMessage `json:"data,omitempty"`
	Language       string          `json:"language,omitempty"`
	Version        int64           `json:"version"`
	LastModifiedAt *time.Time      `json:"lastModifiedAt,omitempty"`
	LastModifiedBy *Actor          `json:"lastModifiedBy,omitempty"`
}

// Initialised reports whether the document has ever been written.
func (d Document) Initialised() bool {
	return d.Version > 0
}

// RoomSettings toggles the collaborative features of a room.
type RoomSettings struct {
	AllowAnonymous     bool `json:"allowAnonymous"`
	AllowCodeEditing   bool `json:"allowCodeEditing"`
	AllowNotesEditing  bool `json:"allowNotesEditing"`
	AllowCanvasDrawing bool `json:"allowCanvasDrawing"`
	AllowChat          bool `json:"allowChat"`
	IsPublic           bool `json:"isPublic"`
}

// DefaultRoomSettings enables every feature.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AllowAnonymous:     true,
		AllowCodeEditing:   true,
		AllowNotesEditing:  true,
		AllowCanvasDrawing: true,
		AllowChat:          true,
		IsPublic:           true,
	}
}

// Room is the aggregate that owns participants, chat and documents.
// Revision is the optimistic concurrency token of the whole row.
type Room struct {
	ID                  uint                                    `gorm:"primaryKey" json:"-"`
	RoomID              string                                  `gorm:"size:64;uniqueIndex;not null" json:"roomId"`
	RoomName            string                                  `gorm:"size:100;index" json:"roomName"`
	Description         string                                  `gorm:"size:500" json:"description"`
	CreatedByUserID     string                                  `gorm:"size:64" json:"-"`
	CreatedByUsername   string                                  `gorm:"size:50" json:"-"`
	IsActive            bool                                    `gorm:"not null;index:idx_rooms_active_activity,priority:1" json:"isActive"`
	MaxParticipants     int                                     `gorm:"not null" json:"maxParticipants"`
	CurrentParticipants int                                     `gorm:"not null" json:"currentParticipants"`
	Participants        datatypes.JSONSlice[ParticipantPresence] `json:"participants"`
	ChatMessages        datatypes.JSONSlice[ChatMessage]         `json:"chatMessages"`
	CodeDocument        datatypes.JSONType[Document]             `json:"codeDocument"`
	NotesDocument       datatypes.JSONType[Document]             `json:"notesDocument"`
	CanvasDocument      datatypes.JSONType[Document]             `json:"canvasDocument"`
	Settings            datatypes.JSONType[RoomSettings]         `json:"settings"`
	CreatedAt           time.Time                               `json:"createdAt"`
	LastActivityAt      time.Time                               `gorm:"index:idx_rooms_active_activity,priority:2" json:"lastActivityAt"`
	Revision            int64                                   `gorm:"not null;default:0" json:"-"`
}

// CreatedBy returns the creator snapshot.
func (r Room) CreatedBy() Actor {
	return Actor{UserID: r.CreatedByUserID, Username: r.CreatedByUsername}
}

// ActiveParticipants returns the presences currently in the room.
func (r Room) ActiveParticipants() []ParticipantPresence {
	return lo.Filter(r.Participants, func(p ParticipantPresence, _ int) bool {
		return p.IsActive
	})
}

// Participant finds the presence for a user, active or not.
func (r Room) Participant(userID string) (ParticipantPresence, int, bool) {
	return lo.FindIndexOf(r.Participants, func(p ParticipantPresence) bool {
		return p.UserID == userID
	})
}

// Recount refreshes the materialised participant count.
func (r *Room) Recount() {
	r.CurrentParticipants = lo.CountBy(r.Participants, func(p ParticipantPresence) bool {
		return p.IsActive
	})
}

// PruneParticipants drops inactive presences whose last activity is older than cutoff.
func (r *Room) PruneParticipants(cutoff time.Time) int {
	before := len(r.Participants)
	r.Participants = lo.Reject(r.Participants, func(p ParticipantPresence, _ int) bool {
		return !p.IsActive && p.LastActivityAt.Before(cutoff)
	})
	return before - len(r.Participants)
}

// AppendChat adds a message and trims the log to the retention cap.
func (r *Room) AppendChat(message ChatMessage, retention int) {
	if retention <= 0 {
		retention = ChatRetention
	}
	messages := append(r.ChatMessages, message)
	if len(messages) > retention {
		messages = messages[len(messages)-retention:]
	}
	r.ChatMessages = messages
}

// ChatTail returns up to n of the newest chat messages in chronological order.
func (r Room) ChatTail(n int) []ChatMessage {
	if n <= 0 || n > len(r.ChatMessages) {
		n = len(r.ChatMessages)
	}
	tail := make([]ChatMessage, n)
	copy(tail, r.ChatMessages[len(r.ChatMessages)-n:])
	return tail
}

// NewDocument returns an empty first-version document.
func NewDocument(language string) Document {
	return Document{Language: language, Version: 1}
}

// ClampMaxParticipants bounds a requested capacity into the allowed range.
func ClampMaxParticipants(value int) int {
	if value == 0 {
		return DefaultMaxParticipants
	}
	if value < MinParticipants {
		return MinParticipants
	}
	if value > MaxParticipantsCeiling {
		return MaxParticipantsCeiling
	}
	return value
}
