package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `default:"redis://localhost:6379/0" usage:"Redis connection URL (KART_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Commerce    CommerceConfig
	Kafka       KafkaConfig
	Checkout    CheckoutConfig
	Cart        CartConfig
	Scratch     ScratchConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// CommerceConfig points at the commerce backend.
type CommerceConfig struct {
	BaseURL         string        `usage:"Commerce backend API base URL" flag:"commerce-url"`
	Timeout         time.Duration `default:"10s" usage:"Per call timeout"`
	BreakerFailures uint32        `default:"5" usage:"Consecutive failures that open the circuit breaker"`
	BreakerCooldown time.Duration `default:"30s" usage:"How long the open breaker rejects calls"`
}

// KafkaConfig configures the order status consumer. It is disabled when no
// brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers"`
	Topic   string   `default:"order.status" usage:"Order status topic"`
	GroupID string   `default:"kart-checkout" usage:"Consumer group"`
}

// CheckoutConfig controls checkout sessions.
type CheckoutConfig struct {
	OnlinePayments bool          `default:"true" usage:"Offer the online payment method" flag:"online-payments"`
	SessionTTL     time.Duration `default:"1h" usage:"Idle checkout session lifetime"`
	SweepInterval  time.Duration `default:"5m" usage:"How often idle checkout sessions are dropped"`
}

// CartConfig controls cart persistence.
type CartConfig struct {
	TTL time.Duration `default:"720h" usage:"Idle cart lifetime"`
}

// ScratchConfig controls payment snapshots kept across the payment redirect.
type ScratchConfig struct {
	TTL time.Duration `default:"1h" usage:"Payment snapshot lifetime"`
}

// SessionConfig controls the browsing session cookie.
type SessionConfig struct {
	CookieName string        `default:"kart_session" usage:"Browsing session cookie name"`
	Secure     bool          `default:"false" usage:"Set the Secure cookie attribute" flag:"session-secure"`
	MaxAge     time.Duration `default:"720h" usage:"Browsing session cookie lifetime"`
}

// RateLimitConfig controls the per-session token bucket.
type RateLimitConfig struct {
	Rate    float64       `default:"10" usage:"Sustained requests per second"`
	Burst   int           `default:"30" usage:"Burst size"`
	IdleTTL time.Duration `default:"10m" usage:"Forget clients idle for this long"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	case c.Commerce.BaseURL == "":
		return errors.New("commerce base URL is required: set KART_COMMERCE_BASE_URL")
	case c.Scratch.TTL <= 0:
		return errors.New("scratch TTL must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, REDIS_URL, PORT) onto the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("KART_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
