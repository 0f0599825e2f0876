package apperror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/collab-room-api/internal/repository"
	"github.com/noah-isme/collab-room-api/internal/service"
)

// Type names the error category exposed to clients.
type Type string

// Error categories.
const (
	TypeValidation         Type = "ValidationError"
	TypeAuthentication     Type = "AuthenticationError"
	TypeAuthorization      Type = "AuthorizationError"
	TypeNotFound           Type = "NotFoundError"
	TypeConflict           Type = "ConflictError"
	TypeRateLimit          Type = "RateLimitError"
	TypeDatabase           Type = "DatabaseError"
	TypeSocket             Type = "SocketError"
	TypeServiceUnavailable Type = "ServiceUnavailable"
	TypeInternal           Type = "InternalError"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an application error with an HTTP status and a client-facing message.
type Error struct {
	Type    Type
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Operational reports whether the message is safe to show in production.
func (e *Error) Operational() bool {
	return e.Status < fiber.StatusInternalServerError || e.Type == TypeServiceUnavailable
}

// New builds an error of the given type with its default status.
func New(kind Type, message string) *Error {
	return &Error{Type: kind, Status: statusFor(kind), Message: message}
}

// Wrap builds an error of the given type around a cause.
func Wrap(kind Type, message string, err error) *Error {
	return &Error{Type: kind, Status: statusFor(kind), Message: message, Err: err}
}

// Validation builds a validation error with field details.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Type: TypeValidation, Status: fiber.StatusBadRequest, Message: message, Fields: fields}
}

// NotFound builds a not-found error.
func NotFound(message string) *Error {
	return New(TypeNotFound, message)
}

// Unauthorized builds an authentication error.
func Unauthorized(message string) *Error {
	return New(TypeAuthentication, message)
}

// Forbidden builds an authorization error.
func Forbidden(message string) *Error {
	return New(TypeAuthorization, message)
}

var (
	validationSentinels = []error{
		service.ErrInvalidUsername, service.ErrMaxBelowCurrent, service.ErrInvalidMinutes,
		service.ErrInvalidLanguage, service.ErrContentTooLarge, service.ErrInvalidCanvas,
		service.ErrEmptyMessage, service.ErrMessageTooLong, service.ErrInvalidMessageType,
		service.ErrInvalidCursor,
	}
	notFoundSentinels = []error{
		service.ErrRoomNotFound, service.ErrUserNotFound, service.ErrRoomUnavailable,
		repository.ErrNotFound,
	}
	conflictSentinels = []error{
		service.ErrUsernameTaken, service.ErrRoomNameTaken, service.ErrRoomFull,
		repository.ErrConflict,
	}
	forbiddenSentinels = []error{
		service.ErrNotRoomOwner, service.ErrFeatureDisabled, service.ErrRegistrationRequired,
		service.ErrNotParticipant,
	}
)

// From classifies any error into an application error.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return Validation("validation failed", fieldErrors(validationErrs)...)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromStatus(fiberErr.Code, fiberErr.Message)
	}

	if matched := match(err, validationSentinels); matched != nil {
		return Wrap(TypeValidation, matched.Error(), err)
	}
	if matched := match(err, notFoundSentinels); matched != nil {
		return Wrap(TypeNotFound, matched.Error(), err)
	}
	if matched := match(err, conflictSentinels); matched != nil {
		message := matched.Error()
		if errors.Is(matched, repository.ErrConflict) {
			message = "resource was modified concurrently, please retry"
		}
		return Wrap(TypeConflict, message, err)
	}
	if matched := match(err, forbiddenSentinels); matched != nil {
		return Wrap(TypeAuthorization, matched.Error(), err)
	}
	if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(TypeServiceUnavailable, "service temporarily unavailable", err)
	}

	return Wrap(TypeDatabase, "internal server error", err)
}

func match(err error, candidates []error) error {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}

func fromStatus(status int, message string) *Error {
	kind := TypeInternal
	switch {
	case status == fiber.StatusNotFound:
		kind = TypeNotFound
	case status == fiber.StatusUnauthorized:
		kind = TypeAuthentication
	case status == fiber.StatusForbidden:
		kind = TypeAuthorization
	case status == fiber.StatusConflict:
		kind = TypeConflict
	case status == fiber.StatusTooManyRequests:
		kind = TypeRateLimit
	case status == fiber.StatusServiceUnavailable:
		kind = TypeServiceUnavailable
	case status >= 400 && status < 500:
		kind = TypeValidation
	}
	return &Error{Type: kind, Status: status, Message: message}
}

func statusFor(kind Type) int {
	switch kind {
	case TypeValidation:
		return fiber.StatusBadRequest
	case TypeAuthentication:
		return fiber.StatusUnauthorized
	case TypeAuthorization:
		return fiber.StatusForbidden
	case TypeNotFound:
		return fiber.StatusNotFound
	case TypeConflict:
		return fiber.StatusConflict
	case TypeRateLimit:
		return fiber.StatusTooManyRequests
	case TypeServiceUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fieldErrors(errs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldError{Field: lowerFirst(fe.Field()), Message: describeTag(fe)})
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "username":
		return "must be 1-50 letters, digits, spaces, '-' or '_'"
	case "roomid":
		return "must be 1-64 letters, digits, '-' or '_'"
	default:
		return "is invalid"
	}
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}
