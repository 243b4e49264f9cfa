package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/votepulse/internal/adapter/httpserver"
	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	"github.com/pscheid92/votepulse/internal/adapter/redis"
	"github.com/pscheid92/votepulse/internal/platform/config"
	"github.com/pscheid92/votepulse/internal/platform/logging"
	"github.com/pscheid92/votepulse/internal/platform/version"
	"github.com/pscheid92/votepulse/internal/relay"
	goredis "github.com/redis/go-redis/v9"
)

func runGracefulShutdown(srv *httpserver.Server, hub *relay.Hub, bridge *redis.Bridge) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Close frames go out before the listener stops accepting upgrades.
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if bridge != nil {
			bridge.Stop()
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, redisMetrics *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redisMetrics)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupBridge(client *goredis.Client, hub *relay.Hub, relayMetrics *metrics.RelayMetrics) *redis.Bridge {
	bridge := redis.NewBridge(client, hub, relayMetrics)
	hub.SetBridge(bridge)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bridge.Start(ctx); err != nil {
		slog.Error("Failed to start relay bridge", "error", err)
		os.Exit(1)
	}
	return bridge
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)

	hub := relay.NewHub(clock, cfg.MaxWebSocketConnections, relayMetrics)

	var (
		bridge       *redis.Bridge
		healthChecks []httpserver.HealthCheck
	)
	if cfg.RedisURL != "" {
		redisClient := setupRedis(cfg, metrics.NewRedisMetrics(registry))
		defer func() { _ = redisClient.Close() }()

		bridge = setupBridge(redisClient, hub, relayMetrics)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		slog.Info("REDIS_URL not set, running as a single relay instance")
	}

	srv := httpserver.NewServer(cfg, clock, hub, registry, relayMetrics, healthChecks)

	done := runGracefulShutdown(srv, hub, bridge)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
