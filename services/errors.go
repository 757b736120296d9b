package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrPasswordTooShort       = errors.New("password is too short")
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	ErrEventNotFound     = errors.New("event not found")
	ErrEventNameConflict = errors.New("event name is already in use")
	ErrEventNameRequired = errors.New("event name is required")
	ErrEventInvalidType  = errors.New("invalid event type provided")
	ErrResultsEmpty      = errors.New("no completed scores to archive")
	ErrUnsupportedUpload = errors.New("unsupported upload content type")
)
