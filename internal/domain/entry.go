package domain

import (
	"time"
)

// Channel is the delivery channel for a queue entry.
// SMS and email share the same queue and processor; the channel selects
// the normalization/segmentation rules and the provider credentials.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

// Status tracks the lifecycle of a queue entry.
//
//	pending -> scheduled -> processing -> sent -> delivered
//	                                   -> failed (-> scheduled while retries remain)
//	                                   -> skipped
//
// delivered, skipped, and failed with exhausted attempts are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusProcessing,
		StatusSent, StatusDelivered, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// SkipReason explains why an entry was skipped instead of sent.
// Skips are compliance outcomes, not failures: attempts is never incremented.
type SkipReason string

const (
	SkipReasonOptedOut           SkipReason = "recipient_opted_out"
	SkipReasonTenantDisabled     SkipReason = "tenant_disabled"
	SkipReasonInvalidDestination SkipReason = "invalid_destination"
	SkipReasonQuietHours         SkipReason = "quiet_hours"
	SkipReasonDailyLimit         SkipReason = "daily_limit_reached"
)

// DefaultMaxAttempts is applied to new entries unless the producer overrides it.
const DefaultMaxAttempts = 3

// QueueEntry is one outbound message attempt. Retries mutate the same row;
// attempts preserves the audit trail.
type QueueEntry struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenant_id"`
	Channel  Channel `json:"channel"`

	Destination   string  `json:"destination"`
	RecipientType string  `json:"recipient_type,omitempty"`
	RecipientID   *string `json:"recipient_id,omitempty"`
	RecipientName string  `json:"recipient_name,omitempty"`

	NotificationType string `json:"notification_type"`
	Content          string `json:"content"`
	ContentLength    int    `json:"content_length"`
	SegmentCount     int    `json:"segment_count"`

	Status Status `json:"status"`

	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// ClaimID is non-nil iff status is processing. It is the run identifier
	// of the processor pass that claimed the entry, stored durably so any
	// worker can recover another worker's crash via stale reset.
	ClaimID *string `json:"claim_id,omitempty"`

	SentAt            *time.Time  `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty"`
	SkipReason        *SkipReason `json:"skip_reason,omitempty"`
	ErrorMessage      *string     `json:"error_message,omitempty"`

	IdempotencyKey *string `json:"idempotency_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RetryEligible reports whether a failed entry may still be rescheduled.
func (e *QueueEntry) RetryEligible() bool {
	return e.Status == StatusFailed && e.Attempts < e.MaxAttempts
}

// NextRetryAt computes the exponential-backoff reschedule time after the
// entry's current attempt count: 2^(attempts-1) minutes from now.
func (e *QueueEntry) NextRetryAt(now time.Time) time.Time {
	exp := e.Attempts - 1
	if exp < 0 {
		exp = 0
	}
	return now.Add((1 << uint(exp)) * time.Minute)
}

// CreateEntryRequest is the inbound producer payload for a single entry.
// Content may be supplied directly or rendered from the tenant's template
// for NotificationType when Variables is set.
type CreateEntryRequest struct {
	Channel          Channel           `json:"channel"`
	Destination      string            `json:"destination"`
	RecipientType    string            `json:"recipient_type,omitempty"`
	RecipientID      *string           `json:"recipient_id,omitempty"`
	RecipientName    string            `json:"recipient_name,omitempty"`
	NotificationType string            `json:"notification_type"`
	Content          string            `json:"content,omitempty"`
	Variables        map[string]string `json:"variables,omitempty"`
	ScheduledAt      *time.Time        `json:"scheduled_at,omitempty"`
}

func (r *CreateEntryRequest) Validate() error {
	if !r.Channel.IsValid() {
		return ErrInvalidChannel
	}
	if r.Destination == "" {
		return ErrInvalidDestination
	}
	if r.NotificationType == "" {
		return ErrInvalidNotificationType
	}
	if r.Content == "" && len(r.Variables) == 0 {
		return ErrInvalidContent
	}
	if len(r.Content) > 4096 {
		return ErrInvalidContent
	}
	return nil
}

// ListFilter holds query parameters for paginated entry listing.
type ListFilter struct {
	Status      *Status
	Channel     *Channel
	Destination *string
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

// QueueStats is a point-in-time snapshot of one tenant's queue.
type QueueStats struct {
	ByStatus      map[Status]int `json:"by_status"`
	SentLast24h   int            `json:"sent_last_24h"`
	FailedLast24h int            `json:"failed_last_24h"`
}
