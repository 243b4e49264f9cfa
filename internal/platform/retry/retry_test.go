package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pscheid92/votepulse/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Millisecond,
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, retry.Always, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if val != 42 || calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", val, calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("bad handshake")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func(context.Context) error {
		calls++
		return permanent
	})
	var permErr *retry.PermanentError
	if !errors.As(err, &permErr) || !errors.Is(err, permanent) {
		t.Fatalf("expected wrapped PermanentError, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("connection refused")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, retry.Always, func(context.Context) error {
		calls++
		return underlying
	})
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped underlying error, got %v", err)
	}
	if calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, calls)
	}
}

func TestDo_BackoffIsCapped(t *testing.T) {
	var observed []time.Duration
	p := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			observed = append(observed, backoff)
		},
	}

	_ = retry.DoVoid(context.Background(), p, retry.Always, func(context.Context) error {
		return errors.New("down")
	})

	want := []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
	if len(observed) != len(want) {
		t.Fatalf("expected %d retries, got %d", len(want), len(observed))
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("retry %d: expected backoff %v, got %v", i+1, want[i], observed[i])
		}
	}
}

func TestDo_UnlimitedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{InitialBackoff: time.Millisecond}

	calls := 0
	err := retry.DoVoid(ctx, p, retry.Always, func(context.Context) error {
		calls++
		if calls == 10 {
			cancel()
		}
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 10 {
		t.Fatalf("expected 10 calls, got %d", calls)
	}
}

func alwaysStop(error) retry.Action { return retry.Stop }
