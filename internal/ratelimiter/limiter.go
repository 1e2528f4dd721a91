package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TenantLimiters holds one token bucket limiter per tenant, created lazily
// at the tenant's configured messages-per-second rate. Burst is 1: the
// requirement is even spacing between dispatches within one tenant's pass,
// not per-second burst capacity.
type TenantLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]int
}

func New() *TenantLimiters {
	return &TenantLimiters{
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]int),
	}
}

// Wait blocks until the tenant's limiter grants a token. Called by the
// processor immediately before each provider dispatch. ratePerSec <= 0 is
// treated as 1. Returns a non-nil error only if ctx is cancelled while
// waiting.
func (tl *TenantLimiters) Wait(ctx context.Context, tenantID string, ratePerSec int) error {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return tl.limiter(tenantID, ratePerSec).Wait(ctx)
}

// limiter returns the tenant's limiter, rebuilding it if the configured rate
// changed since the last pass.
func (tl *TenantLimiters) limiter(tenantID string, ratePerSec int) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if l, ok := tl.limiters[tenantID]; ok && tl.rates[tenantID] == ratePerSec {
		return l
	}
	l := rate.NewLimiter(rate.Limit(ratePerSec), 1)
	tl.limiters[tenantID] = l
	tl.rates[tenantID] = ratePerSec
	return l
}
