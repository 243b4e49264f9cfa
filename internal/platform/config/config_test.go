package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "5001", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 100, cfg.APIRateBurst)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Origins())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("MAX_WEBSOCKET_CONNECTIONS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Origins())
	assert.Equal(t, 5, cfg.MaxWebSocketConnections)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL must be one of"},
		{"bad log format", "LOG_FORMAT", "xml", "LOG_FORMAT must be text or json"},
		{"zero connections", "MAX_WEBSOCKET_CONNECTIONS", "0", "MAX_WEBSOCKET_CONNECTIONS must be positive"},
		{"zero burst", "API_RATE_BURST", "0", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:5001/ws", cfg.ServerURL)
	assert.Equal(t, "votepulse.db", cfg.StoragePath)
	assert.Equal(t, "operator", cfg.Role)
}

func TestLoadClient_RejectsHTTPScheme(t *testing.T) {
	t.Setenv("VOTEPULSE_SERVER_URL", "http://localhost:5001/ws")

	_, err := LoadClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must use ws or wss")
}
