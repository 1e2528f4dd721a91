// Package cache provides a Redis fast path for the per-tenant daily send
// counter. The database count remains the source of truth; the cache only
// avoids a COUNT(*) on every processing pass. Everything degrades to the
// repository when Redis is not configured or unavailable.
package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

const counterTTL = 25 * time.Hour

// DailyCounter tracks sends per tenant per UTC day.
type DailyCounter struct {
	client *goredis.Client
	queue  repository.QueueRepository
	now    func() time.Time
}

// NewDailyCounter wraps the queue repository's DailyCount with a Redis
// counter. client may be nil; every call then falls through to the database.
func NewDailyCounter(client *goredis.Client, queue repository.QueueRepository) *DailyCounter {
	return &DailyCounter{
		client: client,
		queue:  queue,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewRedis builds a client from a redis:// URL and verifies connectivity.
func NewRedis(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *DailyCounter) key(tenantID string) string {
	return fmt.Sprintf("dailycount:%s:%s", tenantID, c.now().Format("2006-01-02"))
}

// Count returns the tenant's send count for the daily-limit check. On a
// cache miss the database count seeds the key so subsequent passes stay off
// the COUNT(*) path.
func (c *DailyCounter) Count(ctx context.Context, tenantID string) (int, error) {
	if c.client == nil {
		return c.queue.DailyCount(ctx, tenantID)
	}

	n, err := c.client.Get(ctx, c.key(tenantID)).Int()
	if err == nil {
		return n, nil
	}
	if err != goredis.Nil {
		// Redis down: the database answer is always correct.
		return c.queue.DailyCount(ctx, tenantID)
	}

	n, dbErr := c.queue.DailyCount(ctx, tenantID)
	if dbErr != nil {
		return 0, dbErr
	}
	_ = c.client.Set(ctx, c.key(tenantID), n, counterTTL).Err()
	return n, nil
}

// Incr bumps the counter after a successful send. Best effort: a failed
// increment only costs one extra COUNT(*) later.
func (c *DailyCounter) Incr(ctx context.Context, tenantID string) {
	if c.client == nil {
		return
	}
	key := c.key(tenantID)
	if n, err := c.client.Incr(ctx, key).Result(); err == nil && n == 1 {
		_ = c.client.Expire(ctx, key, counterTTL).Err()
	}
}
