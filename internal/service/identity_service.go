package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/repository"
)

var (
	// ErrUserNotFound indicates the user is missing or inactive.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates another active user holds the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidUsername indicates the username fails the allowed character set or length.
	ErrInvalidUsername = errors.New("username must be 1-50 characters of letters, digits, spaces, '-' or '_'")
	// ErrRegistrationRequired is returned when a room only admits known users.
	ErrRegistrationRequired = errors.New("room does not allow anonymous users")
	// ErrInvalidMinutes rejects negative time accounting.
	ErrInvalidMinutes = errors.New("minutes must not be negative")
)

// IdentityService manages anonymous user identities and their activity counters.
type IdentityService interface {
	CreateUser(ctx context.Context, req dto.UserCreateRequest) (models.User, error)
	ResolveForSession(ctx context.Context, username string, preferences map[string]interface{}, sessionID string, allowCreate bool) (models.User, error)
	GetUserByUserID(ctx context.Context, userID string) (models.User, error)
	GetUserBySessionID(ctx context.Context, sessionID string) (models.User, error)
	UpdateUser(ctx context.Context, userID string, req dto.UserUpdateRequest) (models.User, error)
	DeactivateUser(ctx context.Context, userID string) error
	JoinRoom(ctx context.Context, userID, roomID string) (models.User, error)
	LeaveRoom(ctx context.Context, userID string) error
	IncrementMessageCount(ctx context.Context, userID string) error
	AddMinutes(ctx context.Context, userID string, minutes int) (models.User, error)
	SweepInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

type identityService struct {
	users     repository.UserStore
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewIdentityService constructs the identity service.
func NewIdentityService(users repository.UserStore, validate *validator.Validate, logger zerolog.Logger) IdentityService {
	return &identityService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "identity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/collab-room-api/internal/service/identity"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *identityService) CreateUser(ctx context.Context, req dto.UserCreateRequest) (models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return models.User{}, err
	}

	ctx, span := s.tracer.Start(ctx, "identity.create_user")
	defer span.End()

	user, err := s.insert(ctx, req.Username, req.Preferences, uuid.NewString())
	if err != nil {
		span.RecordError(err)
		return models.User{}, err
	}

	s.logger.Info().Str("user_id", user.UserID).Str("username", user.Username).Msg("user created")
	return user, nil
}

// ResolveForSession finds the active user holding username and rebinds it to sessionID,
// or creates a new user when allowCreate is set.
func (s *identityService) ResolveForSession(ctx context.Context, username string, preferences map[string]interface{}, sessionID string, allowCreate bool) (models.User, error) {
	username = strings.TrimSpace(username)
	if !dto.ValidUsername(username) {
		return models.User{}, ErrInvalidUsername
	}

	ctx, span := s.tracer.Start(ctx, "identity.resolve_for_session", trace.WithAttributes(
		attribute.String("identity.session_id", sessionID),
	))
	defer span.End()

	existing, err := s.users.FindActiveByUsername(ctx, username)
	switch {
	case err == nil:
		now := s.now()
		return s.users.UpdateUser(ctx, existing.UserID, func(user *models.User) error {
			user.SessionID = sessionID
			if len(preferences) > 0 {
				user.Preferences = datatypes.NewJSONType(SanitizePreferences(user.Preferences.Data(), preferences))
			}
			user.LastSeenAt = now
			return nil
		})
	case !errors.Is(err, repository.ErrNotFound):
		span.RecordError(err)
		return models.User{}, err
	}

	if !allowCreate {
		return models.User{}, ErrRegistrationRequired
	}

	user, err := s.insert(ctx, username, preferences, sessionID)
	if errors.Is(err, ErrUsernameTaken) {
		// Lost a creation race against another connection using the same name.
		return s.ResolveForSession(ctx, username, preferences, sessionID, false)
	}
	return user, err
}

func (s *identityService) insert(ctx context.Context, username string, preferences map[string]interface{}, sessionID string) (models.User, error) {
	now := s.now()
	user := models.User{
		UserID:        uuid.NewString(),
		Username:      username,
		SessionID:     sessionID,
		IsActive:      true,
		Preferences:   datatypes.NewJSONType(SanitizePreferences(models.DefaultPreferences(), preferences)),
		ActivityStats: datatypes.NewJSONType(models.ActivityStats{}),
		CreatedAt:     now,
		LastSeenAt:    now,
	}

	if err := s.users.InsertUser(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *identityService) GetUserByUserID(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.FindActiveByUserID(ctx, userID)
	return user, s.notFound(err)
}

func (s *identityService) GetUserBySessionID(ctx context.Context, sessionID string) (models.User, error) {
	user, err := s.users.FindActiveBySessionID(ctx, sessionID)
	return user, s.notFound(err)
}

func (s *identityService) UpdateUser(ctx context.Context, userID string, req dto.UserUpdateRequest) (models.User, error) {
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return models.User{}, err
	}

	if req.Username != nil {
		holder, err := s.users.FindActiveByUsername(ctx, *req.Username)
		if err == nil && holder.UserID != userID {
			return models.User{}, ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return models.User{}, err
		}
	}

	now := s.now()
	user, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		if req.Username != nil {
			user.Username = *req.Username
		}
		if req.Preferences != nil {
			user.Preferences = datatypes.NewJSONType(SanitizePreferences(user.Preferences.Data(), req.Preferences))
		}
		user.LastSeenAt = now
		return nil
	})
	if errors.Is(err, repository.ErrConflict) && req.Username != nil {
		return models.User{}, ErrUsernameTaken
	}
	return user, s.notFound(err)
}

func (s *identityService) DeactivateUser(ctx context.Context, userID string) error {
	now := s.now()
	_, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		user.IsActive = false
		user.CurrentRoomID = nil
		user.LastSeenAt = now
		return nil
	})
	if err == nil {
		s.logger.Info().Str("user_id", userID).Msg("user deactivated")
	}
	return s.notFound(err)
}

func (s *identityService) JoinRoom(ctx context.Context, userID, roomID string) (models.User, error) {
	now := s.now()
	user, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		room := roomID
		user.CurrentRoomID = &room
		stats := user.ActivityStats.Data()
		stats.TotalRoomsJoined++
		stats.LastRoomJoinedAt = &now
		user.ActivityStats = datatypes.NewJSONType(stats)
		user.LastSeenAt = now
		return nil
	})
	return user, s.notFound(err)
}

func (s *identityService) LeaveRoom(ctx context.Context, userID string) error {
	now := s.now()
	_, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		user.CurrentRoomID = nil
		user.LastSeenAt = now
		return nil
	})
	return s.notFound(err)
}

func (s *identityService) IncrementMessageCount(ctx context.Context, userID string) error {
	now := s.now()
	_, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		stats := user.ActivityStats.Data()
		stats.TotalMessagesSent++
		user.ActivityStats = datatypes.NewJSONType(stats)
		user.LastSeenAt = now
		return nil
	})
	return s.notFound(err)
}

func (s *identityService) AddMinutes(ctx context.Context, userID string, minutes int) (models.User, error) {
	if minutes < 0 {
		return models.User{}, ErrInvalidMinutes
	}
	now := s.now()
	user, err := s.users.UpdateUser(ctx, userID, func(user *models.User) error {
		stats := user.ActivityStats.Data()
		stats.TotalTimeSpentMinutes += minutes
		user.ActivityStats = datatypes.NewJSONType(stats)
		user.LastSeenAt = now
		return nil
	})
	return user, s.notFound(err)
}

func (s *identityService) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.users.MarkUsersInactive(ctx, cutoff)
}

func (s *identityService) notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
