package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
)

func TestCreateUserEnforcesActiveUsernameUniqueness(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	first, err := ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: " Alice "})
	require.NoError(t, err)
	require.Equal(t, "Alice", first.Username)
	require.NotEmpty(t, first.UserID)
	require.NotEmpty(t, first.SessionID)
	require.Equal(t, models.DefaultPreferences(), first.Preferences.Data())

	_, err = ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "alice"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	require.NoError(t, ts.identity.DeactivateUser(ctx, first.UserID))

	second, err := ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "Alice"})
	require.NoError(t, err)
	require.NotEqual(t, first.UserID, second.UserID)

	_, err = ts.identity.GetUserByUserID(ctx, first.UserID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserRejectsInvalidUsernames(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "bad<name>", "x!y", string(make([]byte, 51))} {
		_, err := ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: name})
		var validationErrs validator.ValidationErrors
		require.ErrorAs(t, err, &validationErrs, "username %q", name)
	}
}

func TestResolveForSessionRebindsExistingUser(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	created, err := ts.identity.ResolveForSession(ctx, "bob", nil, "conn-1", true)
	require.NoError(t, err)
	require.Equal(t, "conn-1", created.SessionID)

	rebound, err := ts.identity.ResolveForSession(ctx, "BOB", map[string]interface{}{
		"appearance": map[string]interface{}{"theme": "dark"},
	}, "conn-2", false)
	require.NoError(t, err)
	require.Equal(t, created.UserID, rebound.UserID)
	require.Equal(t, "conn-2", rebound.SessionID)
	require.Equal(t, models.ThemeDark, rebound.Preferences.Data().Appearance.Theme)

	bySession, err := ts.identity.GetUserBySessionID(ctx, "conn-2")
	require.NoError(t, err)
	require.Equal(t, created.UserID, bySession.UserID)

	_, err = ts.identity.GetUserBySessionID(ctx, "conn-1")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = ts.identity.ResolveForSession(ctx, "carol", nil, "conn-3", false)
	require.ErrorIs(t, err, ErrRegistrationRequired)

	_, err = ts.identity.ResolveForSession(ctx, "no/slashes", nil, "conn-4", true)
	require.ErrorIs(t, err, ErrInvalidUsername)
}

func TestUpdateUserChangesNameAndPreferences(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	alice, err := ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "alice"})
	require.NoError(t, err)
	_, err = ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "bob"})
	require.NoError(t, err)

	_, err = ts.identity.UpdateUser(ctx, alice.UserID, dto.UserUpdateRequest{Username: stringPtr("Bob")})
	require.ErrorIs(t, err, ErrUsernameTaken)

	updated, err := ts.identity.UpdateUser(ctx, alice.UserID, dto.UserUpdateRequest{
		Username: stringPtr(" Alicia "),
		Preferences: map[string]interface{}{
			"accessibility": map[string]interface{}{"fontSize": "large", "highContrast": true},
			"unknown":       "dropped",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Alicia", updated.Username)
	require.Equal(t, models.FontSizeLarge, updated.Preferences.Data().Accessibility.FontSize)
	require.True(t, updated.Preferences.Data().Accessibility.HighContrast)
	require.Equal(t, alice.SessionID, updated.SessionID)
}

func TestActivityCounters(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	user, err := ts.identity.CreateUser(ctx, dto.UserCreateRequest{Username: "dana"})
	require.NoError(t, err)

	joined, err := ts.identity.JoinRoom(ctx, user.UserID, "r1")
	require.NoError(t, err)
	require.NotNil(t, joined.CurrentRoomID)
	require.Equal(t, "r1", *joined.CurrentRoomID)
	require.Equal(t, 1, joined.ActivityStats.Data().TotalRoomsJoined)
	require.NotNil(t, joined.ActivityStats.Data().LastRoomJoinedAt)

	require.NoError(t, ts.identity.IncrementMessageCount(ctx, user.UserID))
	require.NoError(t, ts.identity.IncrementMessageCount(ctx, user.UserID))

	_, err = ts.identity.AddMinutes(ctx, user.UserID, -1)
	require.ErrorIs(t, err, ErrInvalidMinutes)

	withTime, err := ts.identity.AddMinutes(ctx, user.UserID, 15)
	require.NoError(t, err)
	require.Equal(t, 15, withTime.ActivityStats.Data().TotalTimeSpentMinutes)
	require.Equal(t, 2, withTime.ActivityStats.Data().TotalMessagesSent)

	require.NoError(t, ts.identity.LeaveRoom(ctx, user.UserID))
	left, err := ts.identity.GetUserByUserID(ctx, user.UserID)
	require.NoError(t, err)
	require.Nil(t, left.CurrentRoomID)

	_, err = ts.identity.AddMinutes(ctx, "missing", 1)
	require.ErrorIs(t, err, ErrUserNotFound)
}
