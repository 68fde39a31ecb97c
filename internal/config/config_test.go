package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("MOBILE_AUTH_KEY", "test-mobile-key")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "test-mobile-key", cfg.MobileAuthKey)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing REDIS_URL", "REDIS_URL", "REDIS_URL is required"},
		{"missing MOBILE_AUTH_KEY", "MOBILE_AUTH_KEY", "MOBILE_AUTH_KEY is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "excel", cfg.FeedChannel)
	assert.Equal(t, "calcify", cfg.RedisPrefix)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 5*time.Second, cfg.DispatchGracePeriod)
}

func TestLoad_InvalidGracePeriod(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DISPATCH_GRACE_PERIOD", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISPATCH_GRACE_PERIOD")
}
