package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
	"github.com/notifyhub/tenant-dispatch/internal/service"
	"github.com/notifyhub/tenant-dispatch/internal/template"
)

func newService() (*service.EntryService, *repository.MockQueueRepository, *repository.MockTemplateRepository) {
	queue := repository.NewMockQueueRepository()
	templates := repository.NewMockTemplateRepository()
	engine := template.NewEngine(templates, nil)
	return service.NewEntryService(queue, engine, zap.NewNop()), queue, templates
}

func validRequest() domain.CreateEntryRequest {
	return domain.CreateEntryRequest{
		Channel:          domain.ChannelSMS,
		Destination:      "5551234567",
		NotificationType: "order_shipped",
		Content:          "{{name}}, order shipped",
		Variables:        map[string]string{"name": "Ada"},
	}
}

func TestCreate_PendingWithRenderedContent(t *testing.T) {
	svc, queue, _ := newService()
	ctx := context.Background()

	e, dup, err := svc.Create(ctx, "t1", validRequest(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("first create reported as duplicate")
	}
	if e.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending until scheduled", e.Status)
	}
	if e.ScheduledAt != nil {
		t.Fatal("scheduled_at must be unset for a pending entry")
	}
	if e.Content != "Ada, order shipped" {
		t.Fatalf("content = %q", e.Content)
	}
	if e.Destination != "+15551234567" {
		t.Fatalf("destination = %q, want normalized E.164", e.Destination)
	}
	if e.SegmentCount != 1 || e.ContentLength != len("Ada, order shipped") {
		t.Fatalf("segments=%d length=%d", e.SegmentCount, e.ContentLength)
	}
	if e.MaxAttempts != domain.DefaultMaxAttempts {
		t.Fatalf("max attempts = %d", e.MaxAttempts)
	}

	stored, err := queue.GetByID(ctx, "t1", e.ID)
	if err != nil {
		t.Fatalf("entry not persisted: %v", err)
	}
	if stored.Content != e.Content {
		t.Fatalf("stored content = %q", stored.Content)
	}
}

func TestCreate_ScheduledWhenRequested(t *testing.T) {
	svc, _, _ := newService()
	at := time.Now().UTC().Add(2 * time.Hour)

	req := validRequest()
	req.ScheduledAt = &at

	e, _, err := svc.Create(context.Background(), "t1", req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status != domain.StatusScheduled {
		t.Fatalf("status = %s", e.Status)
	}
	if e.ScheduledAt == nil || !e.ScheduledAt.Equal(at) {
		t.Fatalf("scheduled_at = %v, want %v", e.ScheduledAt, at)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.CreateEntryRequest)
		want   error
	}{
		{"bad channel", func(r *domain.CreateEntryRequest) { r.Channel = "fax" }, domain.ErrInvalidChannel},
		{"empty destination", func(r *domain.CreateEntryRequest) { r.Destination = "" }, domain.ErrInvalidDestination},
		{"bad phone", func(r *domain.CreateEntryRequest) { r.Destination = "12" }, domain.ErrInvalidDestination},
		{"missing type", func(r *domain.CreateEntryRequest) { r.NotificationType = "" }, domain.ErrInvalidNotificationType},
		{"no content or variables", func(r *domain.CreateEntryRequest) {
			r.Content = ""
			r.Variables = nil
		}, domain.ErrInvalidContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, _, err := svc.Create(ctx, "t1", req, "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreate_IdempotencyKeyReturnsExisting(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	first, dup, err := svc.Create(ctx, "t1", validRequest(), "order-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("first create reported as duplicate")
	}

	second, dup, err := svc.Create(ctx, "t1", validRequest(), "order-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatal("repeat create should report duplicate")
	}
	if second.ID != first.ID {
		t.Fatalf("got a new entry %s, want existing %s", second.ID, first.ID)
	}

	// Same key under another tenant is a distinct entry.
	other, dup, err := svc.Create(ctx, "t2", validRequest(), "order-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup || other.ID == first.ID {
		t.Fatal("idempotency keys must be scoped per tenant")
	}
}

func TestCreate_RendersTenantTemplate(t *testing.T) {
	svc, _, templates := newService()
	ctx := context.Background()

	templates.Put(&domain.Template{
		TenantID:           "t1",
		NotificationType:   "appointment_reminder",
		Content:            "Hi {{name}}, see you at {{time}}",
		AvailableVariables: []string{"name", "time"},
	})

	req := domain.CreateEntryRequest{
		Channel:          domain.ChannelSMS,
		Destination:      "+15551234567",
		NotificationType: "appointment_reminder",
		Variables:        map[string]string{"name": "Ada", "time": "3pm"},
	}
	e, _, err := svc.Create(ctx, "t1", req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Content != "Hi Ada, see you at 3pm" {
		t.Fatalf("content = %q", e.Content)
	}
}

func TestCreate_TemplateMissingVariables(t *testing.T) {
	svc, _, templates := newService()

	templates.Put(&domain.Template{
		TenantID:           "t1",
		NotificationType:   "appointment_reminder",
		Content:            "Hi {{name}}, see you at {{time}}",
		AvailableVariables: []string{"name", "time"},
	})

	req := domain.CreateEntryRequest{
		Channel:          domain.ChannelSMS,
		Destination:      "+15551234567",
		NotificationType: "appointment_reminder",
		Variables:        map[string]string{"name": "Ada"},
	}
	_, _, err := svc.Create(context.Background(), "t1", req, "")
	if !errors.Is(err, domain.ErrMissingVariables) {
		t.Fatalf("got %v, want ErrMissingVariables", err)
	}
}

func TestCreate_EmailDestinationNormalized(t *testing.T) {
	svc, _, _ := newService()

	req := validRequest()
	req.Channel = domain.ChannelEmail
	req.Destination = "Ada.Lovelace@Example.COM"

	e, _, err := svc.Create(context.Background(), "t1", req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Destination != "ada.lovelace@example.com" {
		t.Fatalf("destination = %q", e.Destination)
	}
}

func TestSchedule_DefaultsToNow(t *testing.T) {
	svc, queue, _ := newService()
	ctx := context.Background()

	e, _, err := svc.Create(ctx, "t1", validRequest(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := time.Now().UTC()
	if err := svc.Schedule(ctx, "t1", e.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := queue.GetByID(ctx, "t1", e.ID)
	if got.Status != domain.StatusScheduled {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ScheduledAt == nil || got.ScheduledAt.Before(before.Add(-time.Second)) {
		t.Fatalf("scheduled_at = %v", got.ScheduledAt)
	}
}

func TestSchedule_AtFutureTime(t *testing.T) {
	svc, queue, _ := newService()
	ctx := context.Background()

	e, _, err := svc.Create(ctx, "t1", validRequest(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	at := time.Now().UTC().Add(24 * time.Hour)
	if err := svc.Schedule(ctx, "t1", e.ID, &at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := queue.GetByID(ctx, "t1", e.ID)
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(at) {
		t.Fatalf("scheduled_at = %v, want %v", got.ScheduledAt, at)
	}
}
