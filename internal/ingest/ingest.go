// Package ingest reconciles asynchronous provider callbacks against the
// queue: delivery/failure status updates and inbound STOP/START messages.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/compliance"
	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

// StatusCallback is the provider's asynchronous delivery report. Callbacks
// can arrive out of order or not at all; the conditional storage updates
// make applying them idempotent.
type StatusCallback struct {
	ProviderMessageID string `json:"provider_message_id"`
	Status            string `json:"status"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// InboundMessage is a recipient-originated message relayed by the provider.
type InboundMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type Ingestor struct {
	queue    repository.QueueRepository
	settings repository.SettingsRepository
	optouts  *optout.Registry
	logger   *zap.Logger
	now      func() time.Time
}

func NewIngestor(
	queue repository.QueueRepository,
	settings repository.SettingsRepository,
	optouts *optout.Registry,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		queue:    queue,
		settings: settings,
		optouts:  optouts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleStatus applies a delivery report. Unknown provider message ids and
// stale transitions are no-ops, not errors: the provider may report on
// messages this system already resolved another way.
func (i *Ingestor) HandleStatus(ctx context.Context, cb StatusCallback) error {
	switch cb.Status {
	case "delivered":
		if err := i.queue.MarkDelivered(ctx, cb.ProviderMessageID, i.now()); err != nil {
			return fmt.Errorf("apply delivered callback: %w", err)
		}
	case "failed", "undelivered", "rejected":
		msg := cb.ErrorMessage
		if msg == "" {
			msg = "provider reported " + cb.Status
		}
		if err := i.queue.MarkFailedByProviderID(ctx, cb.ProviderMessageID, msg); err != nil {
			return fmt.Errorf("apply failure callback: %w", err)
		}
	default:
		i.logger.Debug("ignoring status callback",
			zap.String("provider_message_id", cb.ProviderMessageID),
			zap.String("status", cb.Status),
		)
		return nil
	}

	i.logger.Info("status callback applied",
		zap.String("provider_message_id", cb.ProviderMessageID),
		zap.String("status", cb.Status),
	)
	return nil
}

// HandleInbound routes a recipient message to the owning tenant (by the
// provisioned sender it was addressed to) and applies STOP/START keywords.
// Non-keyword messages are ignored here; forwarding them is a collaborator's
// concern.
func (i *Ingestor) HandleInbound(ctx context.Context, msg InboundMessage) error {
	isStop := compliance.IsOptOutKeyword(msg.Body)
	isStart := compliance.IsOptInKeyword(msg.Body)
	if !isStop && !isStart {
		return nil
	}

	tenantID, err := i.settings.TenantBySender(ctx, msg.To)
	if err != nil {
		return fmt.Errorf("route inbound message: %w", err)
	}

	from, err := compliance.NormalizeDestination(domain.ChannelSMS, msg.From)
	if err != nil {
		return fmt.Errorf("normalize inbound sender: %w", err)
	}

	if isStop {
		return i.optouts.HandleStopKeyword(ctx, tenantID, from, msg.Body)
	}
	return i.optouts.HandleStartKeyword(ctx, tenantID, from)
}
