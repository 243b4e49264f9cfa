package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config holds the relay server settings.
type Config struct {
	AppEnv         string `env:"APP_ENV" default:"development"`
	Port           string `env:"PORT" default:"5001"`
	RedisURL       string `env:"REDIS_URL"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:"http://localhost:5173"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	// 100 requests per 15 minutes per client IP.
	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"0.111"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"100"`
}

// IsDevelopment reports whether localhost origins should be accepted.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

// Origins splits ALLOWED_ORIGINS into its entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads the server configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return errors.New("LOG_FORMAT must be text or json")
	}
	if cfg.MaxWebSocketConnections <= 0 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be positive")
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst <= 0 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL is not a valid URL: %w", err)
		}
	}
	return nil
}

// ClientConfig holds the CLI client settings.
type ClientConfig struct {
	ServerURL   string `env:"VOTEPULSE_SERVER_URL" default:"ws://localhost:5001/ws"`
	StoragePath string `env:"VOTEPULSE_STORAGE_PATH" default:"votepulse.db"`
	Role        string `env:"VOTEPULSE_ROLE" default:"operator"`
	CatalogPath string `env:"CATALOG_PATH"`
	LogLevel    string `env:"LOG_LEVEL" default:"warn"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
}

// LoadClient reads the client configuration.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("VOTEPULSE_SERVER_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.New("VOTEPULSE_SERVER_URL must use ws or wss")
	}
	if cfg.StoragePath == "" {
		return nil, errors.New("VOTEPULSE_STORAGE_PATH is required")
	}
	if cfg.Role == "" {
		return nil, errors.New("VOTEPULSE_ROLE is required")
	}

	return &cfg, nil
}
