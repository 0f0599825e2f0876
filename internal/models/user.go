package models

import (
	"time"

	"gorm.io/datatypes"
)

// Preference enumerations.
const (
	FontSizeSmall  = "small"
	FontSizeMedium = "medium"
	FontSizeLarge  = "large"

	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"

	DefaultCursorColor = "#3B82F6"
)

// AccessibilityPreferences is the subset of preferences copied onto a presence.
type AccessibilityPreferences struct {
	FontSize      string `json:"fontSize"`
	HighContrast  bool   `json:"highContrast"`
	ReducedMotion bool   `json:"reducedMotion"`
	ScreenReader  bool   `json:"screenReader"`
}

// AppearancePreferences controls theme and cursor colour.
type AppearancePreferences struct {
	Theme       string `json:"theme"`
	CursorColor string `json:"cursorColor"`
	// CursorColorChosen is set once the user supplies a valid colour, including the default one.
	CursorColorChosen bool `json:"cursorColorChosen,omitempty"`
}

// NotificationPreferences controls client-side notification cues.
type NotificationPreferences struct {
	Sound        bool `json:"sound"`
	ChatMentions bool `json:"chatMentions"`
}

// Preferences is the sanitised preference document of a user.
type Preferences struct {
	Accessibility AccessibilityPreferences `json:"accessibility"`
	Appearance    AppearancePreferences    `json:"appearance"`
	Notifications NotificationPreferences  `json:"notifications"`
}

// DefaultPreferences returns the baseline every sanitised document is merged over.
func DefaultPreferences() Preferences {
	return Preferences{
		Accessibility: AccessibilityPreferences{FontSize: FontSizeMedium},
		Appearance:    AppearancePreferences{Theme: ThemeAuto, CursorColor: DefaultCursorColor},
		Notifications: NotificationPreferences{Sound: true, ChatMentions: true},
	}
}

// ActivityStats accumulates per-user counters.
type ActivityStats struct {
	TotalRoomsJoined      int        `json:"totalRoomsJoined"`
	TotalMessagesSent     int        `json:"totalMessagesSent"`
	TotalTimeSpentMinutes int        `json:"totalTimeSpentMinutes"`
	LastRoomJoinedAt      *time.Time `json:"lastRoomJoinedAt,omitempty"`
}

// User is an anonymous participant identity.
type User struct {
	ID            uint                              `gorm:"primaryKey" json:"-"`
	UserID        string                            `gorm:"size:64;uniqueIndex;not null" json:"userId"`
	Username      string                            `gorm:"size:50;index;not null" json:"username"`
	SessionID     string                            `gorm:"size:64;uniqueIndex;not null" json:"sessionId"`
	IsActive      bool                              `gorm:"not null;index:idx_users_active_seen,priority:1" json:"isActive"`
	CurrentRoomID *string                           `gorm:"size:64;index" json:"currentRoomId"`
	Preferences   datatypes.JSONType[Preferences]   `json:"preferences"`
	ActivityStats datatypes.JSONType[ActivityStats] `json:"activityStats"`
	CreatedAt     time.Time                         `json:"createdAt"`
	LastSeenAt    time.Time                         `gorm:"index:idx_users_active_seen,priority:2" json:"lastSeenAt"`
	Revision      int64                             `gorm:"not null;default:0" json:"-"`
}

// Actor returns the {userId, username} snapshot of the user.
func (u User) Actor() Actor {
	return Actor{UserID: u.UserID, Username: u.Username}
}
