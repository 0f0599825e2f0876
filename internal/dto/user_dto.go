package dto

import (
	"time"

	"github.com/noah-isme/collab-room-api/internal/models"
)

// UserCreateRequest is the payload for POST /users.
type UserCreateRequest struct {
	Username    string                 `json:"username" validate:"required,username"`
	Preferences map[string]interface{} `json:"preferences"`
}

// UserUpdateRequest allows changing the username and preferences only.
type UserUpdateRequest struct {
	Username    *string                `json:"username" validate:"omitempty,username"`
	Preferences map[string]interface{} `json:"preferences"`
}

// UpdateTimeRequest adds minutes spent to the activity counters.
type UpdateTimeRequest struct {
	Minutes *int `json:"minutes" validate:"required,min=0"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	UserID        string             `json:"userId"`
	Username      string             `json:"username"`
	SessionID     string             `json:"sessionId"`
	IsActive      bool               `json:"isActive"`
	CurrentRoomID *string            `json:"currentRoomId"`
	Preferences   models.Preferences `json:"preferences"`
	CreatedAt     time.Time          `json:"createdAt"`
	LastSeenAt    time.Time          `json:"lastSeenAt"`
}

// UserActivityResponse exposes the activity counters of a user.
type UserActivityResponse struct {
	UserID        string               `json:"userId"`
	Username      string               `json:"username"`
	CurrentRoomID *string              `json:"currentRoomId"`
	ActivityStats models.ActivityStats `json:"activityStats"`
	LastSeenAt    time.Time            `json:"lastSeenAt"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		UserID:        user.UserID,
		Username:      user.Username,
		SessionID:     user.SessionID,
		IsActive:      user.IsActive,
		CurrentRoomID: user.CurrentRoomID,
		Preferences:   user.Preferences.Data(),
		CreatedAt:     user.CreatedAt,
		LastSeenAt:    user.LastSeenAt,
	}
}

// NewUserActivityResponse converts a model into an activity DTO.
func NewUserActivityResponse(user models.User) UserActivityResponse {
	return UserActivityResponse{
		UserID:        user.UserID,
		Username:      user.Username,
		CurrentRoomID: user.CurrentRoomID,
		ActivityStats: user.ActivityStats.Data(),
		LastSeenAt:    user.LastSeenAt,
	}
}
