package compliance

import (
	"time"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// Permission is the result of the composed pre-send check. Reason is set
// only when CanSend is false; RetryAfter is set only for quiet hours, where
// the entry becomes sendable again on its own.
type Permission struct {
	CanSend    bool
	Reason     domain.SkipReason
	RetryAfter *time.Time
}

// EvaluateSendPermission composes the per-entry compliance checks in fixed
// priority order: disabled tenant, invalid destination, opted-out recipient,
// quiet hours. The first failing check wins and determines Reason.
//
// isOptedOut is passed in by the caller (the registry lookup is I/O and this
// package has none).
func EvaluateSendPermission(settings *domain.TenantSettings, channel domain.Channel, destination string, isOptedOut bool, now time.Time) Permission {
	if !settings.Enabled {
		return Permission{Reason: domain.SkipReasonTenantDisabled}
	}
	if _, err := NormalizeDestination(channel, destination); err != nil {
		return Permission{Reason: domain.SkipReasonInvalidDestination}
	}
	if isOptedOut {
		return Permission{Reason: domain.SkipReasonOptedOut}
	}
	if IsQuietHours(settings.QuietHours, now) {
		next := NextAllowedSendTime(settings.QuietHours, now)
		return Permission{Reason: domain.SkipReasonQuietHours, RetryAfter: &next}
	}
	return Permission{CanSend: true}
}
