package provider

import (
	"context"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// SendRequest is what the gateway needs to transmit one message. ClientRef
// is the entry id, passed through so providers that support idempotent
// submission can deduplicate a resend after a lost acknowledgment.
type SendRequest struct {
	TenantID    string         `json:"tenant_id"`
	Channel     domain.Channel `json:"channel"`
	Destination string         `json:"to"`
	Content     string         `json:"content"`
	ClientRef   string         `json:"client_ref"`
}

// SendResult is the provider's synchronous acceptance. Delivery confirmation
// arrives later (if at all) via the status webhook.
type SendResult struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// Provider abstracts the external gateway that transmits a message.
// Implementations are swappable per tenant; the processor resolves one via
// a Resolver so test doubles can stand in without HTTP.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// Resolver returns the provider configured for a tenant. A single-provider
// deployment can use Static.
type Resolver interface {
	For(tenantID, providerName string) (Provider, error)
}

// Static is a Resolver that always returns the same provider.
type Static struct {
	P Provider
}

func (s Static) For(string, string) (Provider, error) { return s.P, nil }
