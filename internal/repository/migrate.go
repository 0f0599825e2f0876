package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/models"
)

// Migrate creates the rooms and users tables with their secondary indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Room{}, &models.User{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Partial expression index: usernames only need to be unique among active users.
	statement := "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_active_username ON users (LOWER(username)) WHERE is_active"
	if err := db.Exec(statement).Error; err != nil {
		return fmt.Errorf("create username index: %w", err)
	}

	return nil
}
