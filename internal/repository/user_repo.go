package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/models"
)

// UserStore persists anonymous user identities.
type UserStore interface {
	FindActiveByUserID(ctx context.Context, userID string) (models.User, error)
	FindActiveBySessionID(ctx context.Context, sessionID string) (models.User, error)
	FindActiveByUsername(ctx context.Context, username string) (models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, userID string, mutate func(user *models.User) error) (models.User, error)
	MarkUsersInactive(ctx context.Context, unseenBefore time.Time) (int64, error)
}

type userStore struct {
	gateway
}

// NewUserStore constructs a user store backed by GORM.
func NewUserStore(db *gorm.DB, opts Options) UserStore {
	return &userStore{gateway: newGateway(db, opts, "user_store")}
}

func (r *userStore) FindActiveByUserID(ctx context.Context, userID string) (models.User, error) {
	return r.findActive(ctx, "find_user_by_id", "user_id = ?", userID)
}

func (r *userStore) FindActiveBySessionID(ctx context.Context, sessionID string) (models.User, error) {
	return r.findActive(ctx, "find_user_by_session", "session_id = ?", sessionID)
}

func (r *userStore) FindActiveByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findActive(ctx, "find_user_by_username", "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

func (r *userStore) findActive(ctx context.Context, op, clause string, value string) (models.User, error) {
	var user models.User
	err := r.run(ctx, op, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where(clause, value).Where("is_active = ?", true).First(&user).Error
	})
	return user, translate(err)
}

// InsertUser rejects collisions on userId, sessionId or (among active users) username.
func (r *userStore) InsertUser(ctx context.Context, user *models.User) error {
	err := r.run(ctx, "insert_user", func(ctx context.Context) error {
		var collisions int64
		err := r.db.WithContext(ctx).Model(&models.User{}).
			Where("user_id = ? OR session_id = ? OR (is_active = ? AND LOWER(username) = ?)",
				user.UserID, user.SessionID, true, strings.ToLower(user.Username)).
			Count(&collisions).Error
		if err != nil {
			return err
		}
		if collisions > 0 {
			return gorm.ErrDuplicatedKey
		}
		return r.db.WithContext(ctx).Create(user).Error
	})
	return translate(err)
}

func (r *userStore) UpdateUser(ctx context.Context, userID string, mutate func(user *models.User) error) (models.User, error) {
	var updated models.User
	err := r.withRetry(ctx, "update_user", func(ctx context.Context) error {
		var current models.User
		if err := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&current).Error; err != nil {
			return translate(err)
		}

		expected := current.Revision
		if err := mutate(&current); err != nil {
			return err
		}
		current.Revision = expected + 1

		result := r.db.WithContext(ctx).Model(&models.User{}).
			Where("user_id = ? AND revision = ?", userID, expected).
			Updates(map[string]interface{}{
				"username":        current.Username,
				"session_id":      current.SessionID,
				"is_active":       current.IsActive,
				"current_room_id": current.CurrentRoomID,
				"preferences":     current.Preferences,
				"activity_stats":  current.ActivityStats,
				"last_seen_at":    current.LastSeenAt,
				"revision":        current.Revision,
			})
		if result.Error != nil {
			return translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return errStaleRevision
		}

		updated = current
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return updated, nil
}

// MarkUsersInactive deactivates users not seen since unseenBefore and detaches them from rooms.
func (r *userStore) MarkUsersInactive(ctx context.Context, unseenBefore time.Time) (int64, error) {
	var affected int64
	err := r.run(ctx, "mark_users_inactive", func(ctx context.Context) error {
		result := r.db.WithContext(ctx).Model(&models.User{}).
			Where("is_active = ? AND last_seen_at < ?", true, unseenBefore).
			Updates(map[string]interface{}{
				"is_active":       false,
				"current_room_id": nil,
				"revision":        gorm.Expr("revision + 1"),
			})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}
