package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/ingest"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

type fixture struct {
	queue    *repository.MockQueueRepository
	settings *repository.MockSettingsRepository
	optrepo  *repository.MockOptOutRepository
	ing      *ingest.Ingestor
}

func newFixture() *fixture {
	f := &fixture{
		queue:    repository.NewMockQueueRepository(),
		settings: repository.NewMockSettingsRepository(),
		optrepo:  repository.NewMockOptOutRepository(),
	}
	logger := zap.NewNop()
	registry := optout.NewRegistry(f.optrepo, f.queue, logger)
	f.ing = ingest.NewIngestor(f.queue, f.settings, registry, logger)
	return f
}

func (f *fixture) putSent(id, tenantID, providerMessageID string) {
	now := time.Now().UTC()
	f.queue.Put(&domain.QueueEntry{
		ID:                id,
		TenantID:          tenantID,
		Channel:           domain.ChannelSMS,
		Destination:       "+15551234567",
		Status:            domain.StatusSent,
		ProviderMessageID: &providerMessageID,
		SentAt:            &now,
		MaxAttempts:       3,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func TestHandleStatus_Delivered(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.putSent("e1", "t1", "prov-1")

	err := f.ing.HandleStatus(ctx, ingest.StatusCallback{ProviderMessageID: "prov-1", Status: "delivered"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, _ := f.queue.GetByID(ctx, "t1", "e1")
	if e.Status != domain.StatusDelivered || e.DeliveredAt == nil {
		t.Fatalf("status=%s delivered_at=%v", e.Status, e.DeliveredAt)
	}
}

func TestHandleStatus_FailureVariants(t *testing.T) {
	for _, status := range []string{"failed", "undelivered", "rejected"} {
		t.Run(status, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.putSent("e1", "t1", "prov-1")

			err := f.ing.HandleStatus(ctx, ingest.StatusCallback{
				ProviderMessageID: "prov-1",
				Status:            status,
				ErrorMessage:      "handset unreachable",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			e, _ := f.queue.GetByID(ctx, "t1", "e1")
			if e.Status != domain.StatusFailed {
				t.Fatalf("status = %s", e.Status)
			}
			if e.ErrorMessage == nil || *e.ErrorMessage != "handset unreachable" {
				t.Fatalf("error message = %v", e.ErrorMessage)
			}
			// A post-send provider rejection is final, not retryable.
			if e.RetryEligible() {
				t.Fatal("entry must not be retry eligible")
			}
		})
	}
}

func TestHandleStatus_FailureWithoutMessageGetsDefault(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.putSent("e1", "t1", "prov-1")

	err := f.ing.HandleStatus(ctx, ingest.StatusCallback{ProviderMessageID: "prov-1", Status: "undelivered"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, _ := f.queue.GetByID(ctx, "t1", "e1")
	if e.ErrorMessage == nil || *e.ErrorMessage != "provider reported undelivered" {
		t.Fatalf("error message = %v", e.ErrorMessage)
	}
}

func TestHandleStatus_UnknownStatusIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.putSent("e1", "t1", "prov-1")

	err := f.ing.HandleStatus(ctx, ingest.StatusCallback{ProviderMessageID: "prov-1", Status: "queued"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ := f.queue.GetByID(ctx, "t1", "e1")
	if e.Status != domain.StatusSent {
		t.Fatalf("status = %s, intermediate callbacks must not change state", e.Status)
	}
}

func TestHandleStatus_UnknownMessageIDIsNoOp(t *testing.T) {
	f := newFixture()
	err := f.ing.HandleStatus(context.Background(), ingest.StatusCallback{ProviderMessageID: "ghost", Status: "delivered"})
	if err != nil {
		t.Fatalf("unknown provider message id should not error: %v", err)
	}
}

func TestHandleInbound_StopKeywordSuppressesAndCancels(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.settings.Put(&domain.TenantSettings{TenantID: "t1", Enabled: true, SenderID: "12345"})
	at := time.Now().UTC().Add(time.Hour)
	f.queue.Put(&domain.QueueEntry{
		ID:          "s1",
		TenantID:    "t1",
		Channel:     domain.ChannelSMS,
		Destination: "+15551234567",
		Status:      domain.StatusScheduled,
		ScheduledAt: &at,
		MaxAttempts: 3,
	})

	// Raw national-format sender: the ingestor normalizes before matching.
	err := f.ing.HandleInbound(ctx, ingest.InboundMessage{From: "5551234567", To: "12345", Body: "  stop  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, _ := f.optrepo.Exists(ctx, "t1", "+15551234567")
	if !exists {
		t.Fatal("normalized destination should be suppressed")
	}
	e, _ := f.queue.GetByID(ctx, "t1", "s1")
	if e.Status != domain.StatusSkipped {
		t.Fatalf("status = %s, STOP must cancel queued sends", e.Status)
	}
}

func TestHandleInbound_StartKeywordRemovesSuppression(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.settings.Put(&domain.TenantSettings{TenantID: "t1", Enabled: true, SenderID: "12345"})
	f.optrepo.Upsert(ctx, &domain.OptOutRecord{
		TenantID:    "t1",
		Destination: "+15551234567",
		Method:      domain.OptOutMethodKeyword,
	})

	err := f.ing.HandleInbound(ctx, ingest.InboundMessage{From: "+15551234567", To: "12345", Body: "START"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, _ := f.optrepo.Exists(ctx, "t1", "+15551234567")
	if exists {
		t.Fatal("START should remove the suppression")
	}
}

func TestHandleInbound_NonKeywordIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// No tenant configured: a non-keyword body must return before routing.
	err := f.ing.HandleInbound(ctx, ingest.InboundMessage{From: "+15551234567", To: "12345", Body: "what time do you open?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleInbound_UnknownSender(t *testing.T) {
	f := newFixture()
	err := f.ing.HandleInbound(context.Background(), ingest.InboundMessage{From: "+15551234567", To: "99999", Body: "STOP"})
	if !errors.Is(err, domain.ErrUnknownTenant) {
		t.Fatalf("got %v, want ErrUnknownTenant", err)
	}
}

func TestHandleInbound_RoutesBySender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.settings.Put(&domain.TenantSettings{TenantID: "t1", Enabled: true, SenderID: "11111"})
	f.settings.Put(&domain.TenantSettings{TenantID: "t2", Enabled: true, SenderID: "22222"})

	err := f.ing.HandleInbound(ctx, ingest.InboundMessage{From: "+15551234567", To: "22222", Body: "STOP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exists, _ := f.optrepo.Exists(ctx, "t2", "+15551234567"); !exists {
		t.Fatal("suppression should land on the tenant owning the sender")
	}
	if exists, _ := f.optrepo.Exists(ctx, "t1", "+15551234567"); exists {
		t.Fatal("suppression must not leak to other tenants")
	}
}
