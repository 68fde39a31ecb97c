package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REDIS_PREFIX" default:"calcify"`
	DatabaseURL string `env:"DATABASE_URL"`

	FeedChannel string `env:"FEED_CHANNEL" default:"excel"`

	MobileAuthKey  string   `env:"MOBILE_AUTH_KEY"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	// DispatchGracePeriod bounds queue draining on shutdown.
	DispatchGracePeriod time.Duration `env:"DISPATCH_GRACE_PERIOD" default:"5s"`
	// HeartbeatInterval controls the instance registry heartbeat.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"15s"`
}

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
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.MobileAuthKey == "" {
		return fmt.Errorf("MOBILE_AUTH_KEY is required")
	}
	if cfg.FeedChannel == "" {
		return fmt.Errorf("FEED_CHANNEL must not be empty")
	}
	if cfg.DispatchGracePeriod <= 0 {
		return fmt.Errorf("DISPATCH_GRACE_PERIOD must be positive, got %v", cfg.DispatchGracePeriod)
	}
	return nil
}
