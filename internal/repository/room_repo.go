package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/models"
)

// RoomFilter describes a paginated listing of active rooms.
type RoomFilter struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

var roomSortColumns = map[string]string{
	"lastActivityAt":      "last_activity_at",
	"createdAt":           "created_at",
	"roomName":            "room_name",
	"currentParticipants": "current_participants",
}

// RoomStore persists room aggregates. It is the only writer of the rooms table.
type RoomStore interface {
	FindActiveRoom(ctx context.Context, roomID string) (models.Room, error)
	FindRoom(ctx context.Context, roomID string) (models.Room, error)
	FindActiveRoomByName(ctx context.Context, name string) (models.Room, error)
	InsertRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, roomID string, mutate func(room *models.Room) error) (models.Room, error)
	ListActiveRooms(ctx context.Context, filter RoomFilter) ([]models.Room, int64, error)
	ListActiveRoomIDs(ctx context.Context) ([]string, error)
	MarkRoomsInactive(ctx context.Context, idleBefore time.Time) (int64, error)
}

type roomStore struct {
	gateway
}

// NewRoomStore constructs a room store backed by GORM.
func NewRoomStore(db *gorm.DB, opts Options) RoomStore {
	return &roomStore{gateway: newGateway(db, opts, "room_store")}
}

func (r *roomStore) FindActiveRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.run(ctx, "find_active_room", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("room_id = ? AND is_active = ?", roomID, true).First(&room).Error
	})
	return room, translate(err)
}

func (r *roomStore) FindRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.run(ctx, "find_room", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	})
	return room, translate(err)
}

func (r *roomStore) FindActiveRoomByName(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	err := r.run(ctx, "find_active_room_by_name", func(ctx context.Context) error {
		return r.db.WithContext(ctx).
			Where("LOWER(room_name) = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(name)), true).
			First(&room).Error
	})
	return room, translate(err)
}

func (r *roomStore) InsertRoom(ctx context.Context, room *models.Room) error {
	err := r.run(ctx, "insert_room", func(ctx context.Context) error {
		var existing int64
		if err := r.db.WithContext(ctx).Model(&models.Room{}).Where("room_id = ?", room.RoomID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return gorm.ErrDuplicatedKey
		}
		return r.db.WithContext(ctx).Create(room).Error
	})
	return translate(err)
}

// UpdateRoom reads the active room, applies mutate to a private copy and writes it back
// only if nobody else wrote in between. Stale writes are retried per the retry policy.
func (r *roomStore) UpdateRoom(ctx context.Context, roomID string, mutate func(room *models.Room) error) (models.Room, error) {
	var updated models.Room
	err := r.withRetry(ctx, "update_room", func(ctx context.Context) error {
		var current models.Room
		if err := r.db.WithContext(ctx).Where("room_id = ? AND is_active = ?", roomID, true).First(&current).Error; err != nil {
			return translate(err)
		}

		expected := current.Revision
		if err := mutate(&current); err != nil {
			return err
		}
		current.Revision = expected + 1

		result := r.db.WithContext(ctx).Model(&models.Room{}).
			Where("room_id = ? AND revision = ?", roomID, expected).
			Updates(roomColumns(current))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStaleRevision
		}

		updated = current
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	return updated, nil
}

func (r *roomStore) ListActiveRooms(ctx context.Context, filter RoomFilter) ([]models.Room, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 50 {
		filter.Limit = 10
	}

	column, ok := roomSortColumns[filter.SortBy]
	if !ok {
		column = "last_activity_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	var (
		rooms []models.Room
		total int64
	)
	err := r.run(ctx, "list_active_rooms", func(ctx context.Context) error {
		query := r.db.WithContext(ctx).Model(&models.Room{}).Where("is_active = ?", true)
		if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
			pattern := "%" + search + "%"
			query = query.Where("LOWER(room_name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
		}

		if err := query.Count(&total).Error; err != nil {
			return err
		}

		offset := (filter.Page - 1) * filter.Limit
		return query.Order(column + " " + direction).Order("id ASC").Offset(offset).Limit(filter.Limit).Find(&rooms).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func (r *roomStore) ListActiveRoomIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.run(ctx, "list_active_room_ids", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&models.Room{}).Where("is_active = ?", true).Order("id ASC").Pluck("room_id", &ids).Error
	})
	return ids, err
}

// MarkRoomsInactive deactivates empty rooms whose last activity precedes idleBefore.
func (r *roomStore) MarkRoomsInactive(ctx context.Context, idleBefore time.Time) (int64, error) {
	var affected int64
	err := r.run(ctx, "mark_rooms_inactive", func(ctx context.Context) error {
		result := r.db.WithContext(ctx).Model(&models.Room{}).
			Where("is_active = ? AND current_participants = 0 AND last_activity_at < ?", true, idleBefore).
			Updates(map[string]interface{}{
				"is_active": false,
				"revision":  gorm.Expr("revision + 1"),
			})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

func roomColumns(room models.Room) map[string]interface{} {
	return map[string]interface{}{
		"room_name":            room.RoomName,
		"description":          room.Description,
		"is_active":            room.IsActive,
		"max_participants":     room.MaxParticipants,
		"current_participants": room.CurrentParticipants,
		"participants":         room.Participants,
		"chat_messages":        room.ChatMessages,
		"code_document":        room.CodeDocument,
		"notes_document":       room.NotesDocument,
		"canvas_document":      room.CanvasDocument,
		"settings":             room.Settings,
		"last_activity_at":     room.LastActivityAt,
		"revision":             room.Revision,
	}
}
