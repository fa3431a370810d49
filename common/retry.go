package common

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the single retry configuration shared by every external
// generation call: bounded attempts with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry matches the backends' guidance: three attempts, 2s..10s waits.
var DefaultRetry = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 2 * time.Second,
	MaxInterval:     10 * time.Second,
}

// Do runs op until it succeeds or the attempt budget is spent. Waits between
// attempts grow exponentially and carry jitter from the backoff package's
// randomization factor. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.RandomizationFactor = 0.5
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// quotaMarkers are matched case-insensitively against error text. The loose
// substring match is intentional: backends word these failures inconsistently
// across versions and none of them expose a stable error code for it.
var quotaMarkers = []string{"quota", "resource exhausted", "rate limit"}

// IsQuotaError reports whether err looks like quota or rate-limit exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Breaker is the one-way live→mock switch each generation client carries.
// Once tripped it never resets for the lifetime of the client instance, so a
// known-exhausted quota is never hammered again. Clients are shared across
// server workers, so state access is locked.
type Breaker struct {
	mu      sync.Mutex
	tripped bool
	reason  string
}

// Tripped reports whether the client is permanently degraded to mock mode.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Reason returns why the breaker tripped, for diagnostics.
func (b *Breaker) Reason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// Trip permanently degrades the client. The first reason wins.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tripped {
		b.tripped = true
		b.reason = reason
	}
}

// TripOnQuota trips only for quota/rate-limit failures and reports whether
// it did.
func (b *Breaker) TripOnQuota(err error) bool {
	if IsQuotaError(err) {
		b.Trip(err.Error())
		return true
	}
	return false
}
