package provider

import (
	"errors"
	"fmt"
)

// Error is a classified provider failure. Permanent errors (invalid number,
// blocked recipient) must not be retried; the distinction is the provider's
// to make via its error codes, never inferred by the core.
type Error struct {
	Code      string
	Message   string
	Permanent bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// IsPermanent reports whether err is a provider error that retrying cannot fix.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Permanent
}
