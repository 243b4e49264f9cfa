package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(hook *CircuitBreakerHook, err error) error {
	ctx := context.Background()
	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return err
	})
	return process(ctx, goredis.NewStringCmd(ctx, "publish", "channel", "payload"))
}

func fastRecoveryHook(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	assert.Equal(t, gobreaker.StateClosed, hook.State())

	for range 10 {
		assert.NoError(t, run(hook, nil))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	counts := hook.Counts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(10), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_NilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	for range 10 {
		err := run(hook, goredis.Nil)
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	assert.Equal(t, uint32(0), hook.Counts().TotalFailures)
}

func TestCircuitBreakerHook_TransientFailures(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	for range 2 {
		err := run(hook, errors.New("connection refused"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	m := metrics.NewRedisMetrics(metrics.NewRegistry())
	hook := NewCircuitBreakerHook(m)

	for range 5 {
		assert.Error(t, run(hook, errors.New("connection timeout")))
	}

	assert.Equal(t, gobreaker.StateOpen, hook.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues(breakerName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerStateChanges.WithLabelValues(breakerName, "open")))
}

func TestCircuitBreakerHook_FailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	for range 5 {
		_ = run(hook, errors.New("redis down"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	called := false
	ctx := context.Background()
	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		called = true
		return nil
	})
	err := process(ctx, goredis.NewIntCmd(ctx, "publish", "channel", "payload"))

	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_PipelineFailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	for range 5 {
		_ = run(hook, errors.New("redis down"))
	}

	called := false
	pipeline := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		called = true
		return nil
	})
	err := pipeline(context.Background(), nil)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestCircuitBreakerHook_RecoveryToHalfOpen(t *testing.T) {
	hook := fastRecoveryHook(nil)
	for range 3 {
		_ = run(hook, errors.New("failure"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	time.Sleep(150 * time.Millisecond)

	assert.NoError(t, run(hook, nil))
	assert.Equal(t, gobreaker.StateHalfOpen, hook.State())
}

func TestCircuitBreakerHook_ClosesAfterSuccessfulRecovery(t *testing.T) {
	m := metrics.NewRedisMetrics(metrics.NewRegistry())
	hook := fastRecoveryHook(m)
	for range 3 {
		_ = run(hook, errors.New("failure"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	time.Sleep(150 * time.Millisecond)

	for range 3 {
		require.NoError(t, run(hook, nil))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis-test")))
}
