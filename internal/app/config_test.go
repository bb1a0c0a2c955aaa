package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KART_DATABASE_URL", "postgres://kart@localhost/kart")
	t.Setenv("KART_COMMERCE_BASE_URL", "https://shop.example/api")
	t.Setenv("KART_CHECKOUT_SESSION_TTL", "30m")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "https://shop.example/api", cfg.Commerce.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Checkout.SessionTTL)
	assert.True(t, cfg.Checkout.OnlinePayments)
	assert.Equal(t, "kart_session", cfg.Session.CookieName)
	assert.Equal(t, time.Hour, cfg.Scratch.TTL)
	assert.Equal(t, "order.status", cfg.Kafka.Topic)
}

func TestLoadConfig_Required(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KART_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KART_COMMERCE_BASE_URL", "https://shop.example/api")

	_, err := loadConfig([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("REDIS_URL", "redis://platform:6379")
	t.Setenv("KART_REDIS_URL", "")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080", RedisURL: "redis://localhost:6379/0"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}
