package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/database"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

func testOptions() Options {
	return Options{
		Retry:  RetryPolicy{Backoff: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}},
		Logger: zerolog.Nop(),
	}
}
