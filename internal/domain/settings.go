package domain

import "time"

// QuietHours is a tenant-local time window during which sends are prohibited.
// Start and End are "HH:MM" in the tenant's Timezone. Overnight windows
// (Start > End, e.g. 21:00-09:00) are supported.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// HealthStatus is an operator-facing tenant state, surfaced via stats.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthPaused   HealthStatus = "paused"
)

// TenantSettings is the per-tenant delivery configuration.
// Enabled is the master kill switch: when false the processor must not
// dispatch anything for the tenant, without error.
type TenantSettings struct {
	TenantID string `json:"tenant_id"`
	Enabled  bool   `json:"enabled"`

	// Provider names the per-tenant provider credentials reference; the
	// secret store resolves it outside this core.
	Provider string `json:"provider"`

	// SenderID is the tenant's provisioned sender number or address.
	// Inbound webhook messages are routed to the tenant by matching it.
	SenderID string `json:"sender_id"`

	QuietHours QuietHours `json:"quiet_hours"`

	// RateLimitPerSec caps dispatches per second within one tenant's pass.
	RateLimitPerSec int `json:"rate_limit_per_sec"`
	// DailyLimit caps sent+delivered entries in a rolling 24h window.
	// Zero means unlimited.
	DailyLimit int `json:"daily_limit"`

	HealthStatus HealthStatus `json:"health_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OptOutMethod records how a suppression was established.
type OptOutMethod string

const (
	OptOutMethodKeyword OptOutMethod = "keyword"
	OptOutMethodAdmin   OptOutMethod = "admin"
	OptOutMethodUser    OptOutMethod = "user"
)

// OptOutRecord is a (tenant, destination) suppression. Presence is
// authoritative; absence only means "may send", never "has opted in".
type OptOutRecord struct {
	TenantID    string       `json:"tenant_id"`
	Destination string       `json:"destination"`
	Method      OptOutMethod `json:"method"`
	// Context keeps the inbound message that triggered a keyword opt-out.
	Context    string    `json:"context,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Template is a per-tenant message template for one notification type.
type Template struct {
	TenantID           string   `json:"tenant_id"`
	NotificationType   string   `json:"notification_type"`
	Content            string   `json:"content"`
	AvailableVariables []string `json:"available_variables"`
	IsDefault          bool     `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
