package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/database"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/repository"
)

type testServices struct {
	db       *gorm.DB
	rooms    *roomService
	identity *identityService
}

func setupServices(t *testing.T) testServices {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	// Every failed attempt is caused by a distinct successful write, so a schedule longer than
	// the number of competing writes in a test can never run out.
	backoff := make([]time.Duration, 12)
	for i := range backoff {
		backoff[i] = time.Duration(i+1) * time.Millisecond
	}
	opts := repository.Options{Retry: repository.RetryPolicy{Backoff: backoff}, Logger: zerolog.Nop()}
	validate := dto.NewValidator()

	return testServices{
		db:       db,
		rooms:    NewRoomService(repository.NewRoomStore(db, opts), validate, zerolog.Nop()).(*roomService),
		identity: NewIdentityService(repository.NewUserStore(db, opts), validate, zerolog.Nop()).(*identityService),
	}
}

func (ts testServices) join(t *testing.T, roomID, userID, username string) models.Room {
	t.Helper()
	room, err := ts.rooms.AddParticipant(context.Background(), roomID, models.ParticipantPresence{
		UserID:    userID,
		Username:  username,
		SessionID: "session-" + userID,
	})
	require.NoError(t, err)
	return room
}

func stringPtr(value string) *string {
	return &value
}

func intPtr(value int) *int {
	return &value
}
