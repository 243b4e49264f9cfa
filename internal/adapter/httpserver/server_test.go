package httpserver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/votepulse/internal/adapter/metrics"
	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/pscheid92/votepulse/internal/platform/config"
	"github.com/pscheid92/votepulse/internal/relay"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	hub      *relay.Hub
	clock    *clockwork.FakeClock
	registry *prometheus.Registry
	metrics  *metrics.RelayMetrics
	url      string
}

type testServerOption func(*testServerOptions)

type testServerOptions struct {
	healthChecks []HealthCheck
	rateLimit    float64
	rateBurst    int
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

// withStrictRateLimit allows a single API request per client.
func withStrictRateLimit() testServerOption {
	return func(o *testServerOptions) {
		o.rateLimit = 0.001
		o.rateBurst = 1
	}
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "development",
		Port:                    "0",
		AllowedOrigins:          "http://localhost:5173",
		MaxWebSocketConnections: 100,
		APIRateLimit:            100,
		APIRateBurst:            100,
	}
}

// newTestServer runs a Server with a real hub behind an httptest server.
func newTestServer(t *testing.T, opts ...testServerOption) *testServer {
	t.Helper()

	o := testServerOptions{rateLimit: 100, rateBurst: 100}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := newTestConfig()
	cfg.APIRateLimit = o.rateLimit
	cfg.APIRateBurst = o.rateBurst

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)
	hub := relay.NewHub(clockwork.NewRealClock(), cfg.MaxWebSocketConnections, relayMetrics)
	t.Cleanup(hub.Stop)

	clock := clockwork.NewFakeClock()
	srv := NewServer(cfg, clock, hub, registry, relayMetrics, o.healthChecks)

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)

	return &testServer{
		Server:   srv,
		hub:      hub,
		clock:    clock,
		registry: registry,
		metrics:  relayMetrics,
		url:      httpServer.URL,
	}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.url, "http") + "/ws"
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join sends joinRoom and waits until the hub has registered the membership.
func (ts *testServer) join(t *testing.T, conn *websocket.Conn, room string, wantMembers int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(domain.JoinRoomMessage(room)))
	require.Eventually(t, func() bool {
		return ts.hub.Members(room) == wantMembers
	}, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) domain.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := domain.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func assertNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

func validState() domain.SyncState {
	record := domain.VotingData{
		PlaceID: 1, Date: "2024-12-04", VotesCount: 120, MaleVoters: 70, FemaleVoters: 50,
		SubmittedBy: domain.Submitter{Role: "operator"}, Timestamp: 1733304600000,
	}
	return domain.SyncState{
		VotingData:   []domain.VotingData{record},
		ActivityLogs: []domain.ActivityLog{domain.NewActivityLog(record, "Headquarter")},
		VotingDates:  []domain.VotingDate{{Date: "2024-12-04", IsActive: true}},
		CurrentDate:  domain.StringPtr("2024-12-04"),
	}
}
