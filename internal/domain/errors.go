package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict: idempotency key already exists")
	ErrInvalidChannel          = errors.New("invalid channel: must be sms or email")
	ErrInvalidDestination      = errors.New("destination is not a valid recipient for the channel")
	ErrInvalidNotificationType = errors.New("notification type must not be empty")
	ErrInvalidContent          = errors.New("content or template variables required, content at most 4096 characters")
	ErrMissingVariables        = errors.New("template variables missing")
	ErrTenantDisabled          = errors.New("tenant is disabled")
	ErrUnknownTenant           = errors.New("no tenant owns this destination")
)
