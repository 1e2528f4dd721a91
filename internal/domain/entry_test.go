package domain_test

import (
	"testing"
	"time"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

func TestQueueEntry_RetryEligible(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.Status
		attempts int
		max      int
		want     bool
	}{
		{"failed below max", domain.StatusFailed, 1, 3, true},
		{"failed at max is terminal", domain.StatusFailed, 3, 3, false},
		{"sent is not retryable", domain.StatusSent, 1, 3, false},
		{"skipped is terminal", domain.StatusSkipped, 0, 3, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := domain.QueueEntry{Status: tc.status, Attempts: tc.attempts, MaxAttempts: tc.max}
			if got := e.RetryEligible(); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQueueEntry_NextRetryAt(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 1 * time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
	}
	for _, tc := range tests {
		e := domain.QueueEntry{Attempts: tc.attempts}
		got := e.NextRetryAt(now)
		if got.Sub(now) != tc.want {
			t.Fatalf("attempts=%d: backoff %v, want %v", tc.attempts, got.Sub(now), tc.want)
		}
	}
}

func TestCreateEntryRequest_Validate(t *testing.T) {
	valid := domain.CreateEntryRequest{
		Channel:          domain.ChannelSMS,
		Destination:      "+15551234567",
		NotificationType: "reminder",
		Content:          "hello",
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("invalid channel", func(t *testing.T) {
		r := valid
		r.Channel = "fax"
		if err := r.Validate(); err != domain.ErrInvalidChannel {
			t.Fatalf("expected ErrInvalidChannel, got %v", err)
		}
	})

	t.Run("empty destination", func(t *testing.T) {
		r := valid
		r.Destination = ""
		if err := r.Validate(); err != domain.ErrInvalidDestination {
			t.Fatalf("expected ErrInvalidDestination, got %v", err)
		}
	})

	t.Run("empty notification type", func(t *testing.T) {
		r := valid
		r.NotificationType = ""
		if err := r.Validate(); err != domain.ErrInvalidNotificationType {
			t.Fatalf("expected ErrInvalidNotificationType, got %v", err)
		}
	})

	t.Run("no content and no variables", func(t *testing.T) {
		r := valid
		r.Content = ""
		if err := r.Validate(); err != domain.ErrInvalidContent {
			t.Fatalf("expected ErrInvalidContent, got %v", err)
		}
	})

	t.Run("variables alone are enough", func(t *testing.T) {
		r := valid
		r.Content = ""
		r.Variables = map[string]string{"name": "Ada"}
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
