package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected the last error to surface")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetrySucceedsMidway(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on second attempt: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Quota exceeded for requests"), true},
		{errors.New("RESOURCE EXHAUSTED: too many tokens"), true},
		{errors.New("rate limit (HTTP 429)"), true},
		{fmt.Errorf("api call: %w", errors.New("quota exhausted")), true},
		{errors.New("connection refused"), false},
		{errors.New("invalid request payload"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaError(tc.err); got != tc.want {
			t.Errorf("IsQuotaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBreakerTripsOnce(t *testing.T) {
	var b Breaker
	if b.Tripped() {
		t.Fatal("new breaker should not be tripped")
	}

	b.Trip("first reason")
	if !b.Tripped() {
		t.Fatal("breaker should be tripped")
	}
	if b.Reason() != "first reason" {
		t.Errorf("unexpected reason %q", b.Reason())
	}

	// Later trips never overwrite the original reason and never reset.
	b.Trip("second reason")
	if b.Reason() != "first reason" {
		t.Errorf("trip overwrote reason: %q", b.Reason())
	}
}

func TestBreakerConcurrentAccess(t *testing.T) {
	// Clients sharing a breaker are used from several pool workers at once;
	// concurrent trips and reads must be safe and the first reason must win.
	var b Breaker
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				if id%2 == 0 {
					b.TripOnQuota(fmt.Errorf("worker %d: rate limit", id))
				} else {
					b.Tripped()
					b.Reason()
				}
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if !b.Tripped() {
		t.Fatal("breaker should be tripped after concurrent quota errors")
	}
	if !strings.Contains(b.Reason(), "rate limit") {
		t.Errorf("unexpected reason %q", b.Reason())
	}
}

func TestBreakerTripOnQuota(t *testing.T) {
	var b Breaker
	if b.TripOnQuota(errors.New("connection reset")) {
		t.Error("non-quota error should not trip the breaker")
	}
	if b.Tripped() {
		t.Error("breaker tripped on a non-quota error")
	}

	if !b.TripOnQuota(errors.New("429 rate limit hit")) {
		t.Error("quota error should trip the breaker")
	}
	if !b.Tripped() {
		t.Error("breaker should stay tripped")
	}
}
