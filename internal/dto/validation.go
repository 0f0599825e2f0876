package dto

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)
	roomIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// NewValidator builds the shared validator with the custom tags used by request payloads.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	_ = validate.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return ValidRoomID(fl.Field().String())
	})
	return validate
}

// ValidUsername reports whether name is 1-50 characters of letters, digits, space, '-' or '_'.
func ValidUsername(name string) bool {
	length := len([]rune(name))
	return length >= 1 && length <= 50 && usernamePattern.MatchString(name)
}

// ValidRoomID reports whether id is 1-64 characters of letters, digits, '-' or '_'.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}
