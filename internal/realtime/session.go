package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// SessionInfo is a copy of the session bindings.
type SessionInfo struct {
	ConnectionID string
	UserID       string
	RoomID       string
	Username     string
	Color        string
	ConnectedAt  time.Time
	JoinedAt     time.Time
}

// InRoom reports whether the session is bound to a room.
func (i SessionInfo) InRoom() bool {
	return i.RoomID != ""
}

// Session is the engine's record of one connection.
type Session struct {
	id          string
	connectedAt time.Time
	sub         Subscriber
	presence    *presenceCoalescer

	// mu serialises event processing for the connection.
	mu     sync.Mutex
	closed atomic.Bool

	stateMu  sync.RWMutex
	userID   string
	roomID   string
	username string
	color    string
	joinedAt time.Time
}

func newSession(sub Subscriber, interval time.Duration, now time.Time) *Session {
	return &Session{
		id:          sub.SessionID(),
		connectedAt: now,
		sub:         sub,
		presence:    newPresenceCoalescer(interval),
	}
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.id
}

// Info returns the current bindings.
func (s *Session) Info() SessionInfo {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return SessionInfo{
		ConnectionID: s.id,
		UserID:       s.userID,
		RoomID:       s.roomID,
		Username:     s.username,
		Color:        s.color,
		ConnectedAt:  s.connectedAt,
		JoinedAt:     s.joinedAt,
	}
}

func (s *Session) bind(userID, roomID, username, color string, joinedAt time.Time) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.userID = userID
	s.roomID = roomID
	s.username = username
	s.color = color
	s.joinedAt = joinedAt
}

// unbind clears the room binding and returns what it was.
func (s *Session) unbind() (SessionInfo, bool) {
	info := s.Info()
	if !info.InRoom() {
		return info, false
	}

	s.stateMu.Lock()
	s.userID = ""
	s.roomID = ""
	s.username = ""
	s.color = ""
	s.joinedAt = time.Time{}
	s.stateMu.Unlock()

	s.presence.reset()
	return info, true
}
