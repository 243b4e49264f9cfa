package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	"github.com/pscheid92/votepulse/internal/platform/config"
	"github.com/pscheid92/votepulse/internal/relay"
)

type relayHub interface {
	Connect(conn *websocket.Conn) (relay.ConnectionID, error)
	Join(id relay.ConnectionID, room string)
	Disconnect(id relay.ConnectionID)
	Publish(from relay.ConnectionID, room string, data []byte)
	Broadcast(room string, data []byte)
	Members(room string) int
	ConnectionCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	hub      relayHub
	upgrader websocket.Upgrader

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	relayMetrics *metrics.RelayMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the relay surface. registry and relayMetrics may be nil,
// in which case /metrics is not served and nothing is recorded.
func NewServer(cfg *config.Config, clock clockwork.Clock, hub relayHub, registry *prometheus.Registry, relayMetrics *metrics.RelayMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		clock:        clock,
		hub:          hub,
		registry:     registry,
		relayMetrics: relayMetrics,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins(), cfg.IsDevelopment()),
		},
	}
	if registry != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	srv.registerRoutes()
	return srv
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
