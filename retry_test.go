package dsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
)

func TestShouldRetry_NonRetryableSentinels(t *testing.T) {
	if ShouldRetry(nil) {
		t.Fatalf("nil should not retry")
	}
	if ShouldRetry(context.Canceled) {
		t.Fatalf("context.Canceled should not retry")
	}
	if ShouldRetry(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatalf("context.DeadlineExceeded should not retry")
	}
}

func TestShouldRetry_NonRetryableCodes(t *testing.T) {
	cases := []error{
		ValidatePermits(0),
		Error{Code: Unsupported, Err: errors.New("no expiry")},
		Error{Code: Cancelled, Err: errors.New("gone")},
	}
	for i, e := range cases {
		if ShouldRetry(e) {
			t.Fatalf("case %d expected non-retryable: %v", i, e)
		}
	}
}

func TestShouldRetry_RetryableTransient(t *testing.T) {
	cases := []error{
		errors.New("dial tcp: connection refused"),
		Error{Code: StoreCommunicationFailure, Err: errors.New("i/o timeout")},
		Error{Code: SubscriptionFailure, Err: errors.New("subscribe timeout")},
	}
	for i, e := range cases {
		if !ShouldRetry(e) {
			t.Fatalf("case %d expected retryable: %v", i, e)
		}
	}
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, func(ctx context.Context) {
		t.Fatalf("gave up task must not run on success")
	})
	if err != nil || calls != 1 {
		t.Fatalf("expected one successful call, got %d, %v", calls, err)
	}
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	err := RetryIfTransient(context.Background(), func(ctx context.Context) error {
		calls++
		return ValidatePermits(-1)
	})
	if CodeOf(err) != InvalidPermits || calls != 1 {
		t.Fatalf("expected a single invalid permits attempt, got %d, %v", calls, err)
	}
}

func TestRetry_GaveUpOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	gaveUp := false
	err := Retry(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return retry.RetryableError(errors.New("busy"))
	}, func(ctx context.Context) {
		gaveUp = true
	})
	if err == nil || !gaveUp {
		t.Fatalf("expected give up after cancel, got %v, gaveUp=%v", err, gaveUp)
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancel, got %d calls", calls)
	}
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	Sleep(ctx, 5*time.Second)
	if time.Since(start) > time.Second {
		t.Fatalf("sleep ignored cancelled context")
	}
	Sleep(context.Background(), 0)
}

func TestSince_UsesNow(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	Now = func() time.Time { return base.Add(3 * time.Second) }
	defer func() { Now = time.Now }()
	if d := Since(base); d != 3*time.Second {
		t.Fatalf("expected 3s, got %v", d)
	}
}
