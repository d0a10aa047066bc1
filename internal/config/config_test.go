package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MONGO_URI", "NATS_URL", "PUSH_TIMEOUT", "AUTO_RESPONDER_ID", "RATE_LIMIT_REQUESTS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.MongoURI)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, "system", cfg.AutoResponderID)
	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DATABASE", "chat")
	t.Setenv("PUSH_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_REQUESTS", "15")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "chat", cfg.MongoDatabase)
	assert.Equal(t, 3*time.Second, cfg.PushTimeout)
	assert.Equal(t, 15, cfg.RateLimitRequests)
	assert.True(t, cfg.TracingEnabled)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("PUSH_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_REQUESTS", "many")

	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, 120, cfg.RateLimitRequests)
}

func TestValidate(t *testing.T) {
	cfg := &Config{JWTSecret: "", AutoResponderID: "", RateLimitRequests: 0, MongoURI: "mongodb://x"}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "MONGO_DATABASE")
	assert.Contains(t, err.Error(), "AUTO_RESPONDER_ID")
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")
}
