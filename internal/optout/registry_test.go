package optout_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

func newRegistry() (*optout.Registry, *repository.MockOptOutRepository, *repository.MockQueueRepository) {
	repo := repository.NewMockOptOutRepository()
	queue := repository.NewMockQueueRepository()
	return optout.NewRegistry(repo, queue, zap.NewNop()), repo, queue
}

func queuedEntry(id, tenantID, destination string, status domain.Status) *domain.QueueEntry {
	now := time.Now().UTC()
	e := &domain.QueueEntry{
		ID:          id,
		TenantID:    tenantID,
		Channel:     domain.ChannelSMS,
		Destination: destination,
		Status:      status,
		MaxAttempts: 3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.StatusScheduled {
		at := now.Add(time.Hour)
		e.ScheduledAt = &at
	}
	return e
}

func TestHandleStopKeyword_CancelsQueuedEntries(t *testing.T) {
	reg, _, queue := newRegistry()
	ctx := context.Background()

	queue.Put(queuedEntry("p1", "t1", "+15551234567", domain.StatusPending))
	queue.Put(queuedEntry("s1", "t1", "+15551234567", domain.StatusScheduled))
	queue.Put(queuedEntry("done", "t1", "+15551234567", domain.StatusSent))
	queue.Put(queuedEntry("other", "t1", "+15559876543", domain.StatusScheduled))

	if err := reg.HandleStopKeyword(ctx, "t1", "+15551234567", "STOP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opted, err := reg.IsOptedOut(ctx, "t1", "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opted {
		t.Fatal("destination should be suppressed")
	}

	for _, id := range []string{"p1", "s1"} {
		e, _ := queue.GetByID(ctx, "t1", id)
		if e.Status != domain.StatusSkipped {
			t.Fatalf("%s status = %s, want skipped", id, e.Status)
		}
		if e.SkipReason == nil || *e.SkipReason != domain.SkipReasonOptedOut {
			t.Fatalf("%s skip reason = %v", id, e.SkipReason)
		}
	}
	if e, _ := queue.GetByID(ctx, "t1", "done"); e.Status != domain.StatusSent {
		t.Fatal("already-sent entry must not be touched")
	}
	if e, _ := queue.GetByID(ctx, "t1", "other"); e.Status != domain.StatusScheduled {
		t.Fatal("other destinations must not be touched")
	}
}

func TestHandleStopKeyword_RecordsOriginalMessage(t *testing.T) {
	reg, repo, _ := newRegistry()
	ctx := context.Background()

	if err := reg.HandleStopKeyword(ctx, "t1", "+15551234567", "STOPALL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs, _ := repo.List(ctx, "t1")
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Method != domain.OptOutMethodKeyword {
		t.Fatalf("method = %s", recs[0].Method)
	}
	if recs[0].Context != "STOPALL" {
		t.Fatalf("context = %q", recs[0].Context)
	}
}

func TestSuppress_IsIdempotent(t *testing.T) {
	reg, repo, _ := newRegistry()
	ctx := context.Background()

	if err := reg.Suppress(ctx, "t1", "+15551234567", domain.OptOutMethodKeyword, "STOP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Suppress(ctx, "t1", "+15551234567", domain.OptOutMethodAdmin, "support ticket 42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs, _ := repo.List(ctx, "t1")
	if len(recs) != 1 {
		t.Fatalf("got %d records, repeat suppression must not duplicate", len(recs))
	}
	if recs[0].Method != domain.OptOutMethodAdmin {
		t.Fatalf("method = %s, last write should win", recs[0].Method)
	}
}

func TestHandleStartKeyword_RemovesWithoutResurrecting(t *testing.T) {
	reg, _, queue := newRegistry()
	ctx := context.Background()

	queue.Put(queuedEntry("s1", "t1", "+15551234567", domain.StatusScheduled))
	if err := reg.HandleStopKeyword(ctx, "t1", "+15551234567", "STOP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.HandleStartKeyword(ctx, "t1", "+15551234567"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opted, _ := reg.IsOptedOut(ctx, "t1", "+15551234567")
	if opted {
		t.Fatal("destination should no longer be suppressed")
	}

	e, _ := queue.GetByID(ctx, "t1", "s1")
	if e.Status != domain.StatusSkipped {
		t.Fatalf("status = %s, opt-in must not resurrect skipped entries", e.Status)
	}
}

func TestOptOut_TenantScoped(t *testing.T) {
	reg, _, _ := newRegistry()
	ctx := context.Background()

	if err := reg.Suppress(ctx, "t1", "+15551234567", domain.OptOutMethodUser, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opted, _ := reg.IsOptedOut(ctx, "t2", "+15551234567")
	if opted {
		t.Fatal("suppression must not leak across tenants")
	}
}
