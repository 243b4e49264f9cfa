package redis

import (
	"context"
	"fmt"

	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, installs the metrics and circuit breaker hooks, and verifies
// the connection with a ping. redisMetrics may be nil.
func NewClient(ctx context.Context, redisURL string, redisMetrics *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if redisMetrics != nil {
		rdb.AddHook(&MetricsHook{metrics: redisMetrics})
	}
	rdb.AddHook(NewCircuitBreakerHook(redisMetrics))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
