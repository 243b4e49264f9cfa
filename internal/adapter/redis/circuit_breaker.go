package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const breakerName = "redis"

// CircuitBreakerHook implements redis.Hook and guards every dial, command and pipeline
// with a circuit breaker. Cache misses (redis.Nil) count as successes.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips after at least 5 requests in a 10s window with a 60% failure
// rate, stays open for 30s, and closes after one successful probe. redisMetrics may be nil.
func NewCircuitBreakerHook(redisMetrics *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, redisMetrics)
}

func newCircuitBreakerHook(settings gobreaker.Settings, redisMetrics *metrics.RedisMetrics) *CircuitBreakerHook {
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		if redisMetrics != nil {
			redisMetrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
			redisMetrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		}
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		return h.guard(func() error { return next(ctx, cmd) })
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return h.guard(func() error { return next(ctx, cmds) })
	}
}

// guard runs fn through the breaker and returns fn's own error unchanged,
// so callers can still match redis.Nil.
func (h *CircuitBreakerHook) guard(fn func() error) error {
	var cmdErr error
	_, err := h.cb.Execute(func() (any, error) {
		cmdErr = fn()
		if cmdErr != nil && !errors.Is(cmdErr, goredis.Nil) {
			return nil, cmdErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("redis circuit breaker open: %w", err)
	}
	return cmdErr
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

// Counts returns the request counts of the current window.
func (h *CircuitBreakerHook) Counts() gobreaker.Counts {
	return h.cb.Counts()
}
