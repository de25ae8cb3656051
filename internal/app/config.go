package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Store       StoreConfig
	WooCommerce WooCommerceConfig
	Stripe      StripeConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StoreConfig selects where session state lives.
type StoreConfig struct {
	Driver      string        `default:"memory" usage:"Session storage: memory, redis or postgres" flag:"store"`
	RedisURL    string        `usage:"Redis URL (STOREFRONT_STORE_REDISURL or REDIS_URL)" flag:"redis-url"`
	DatabaseURL string        `usage:"PostgreSQL URL (STOREFRONT_STORE_DATABASEURL or DATABASE_URL)" flag:"database-url"`
	TTL         time.Duration `default:"720h" usage:"Expiry of session keys in Redis"`

	// ArchiveOrders keeps order summaries in PostgreSQL even when sessions
	// live elsewhere. Requires DatabaseURL.
	ArchiveOrders bool `default:"false" usage:"Archive order summaries in PostgreSQL" flag:"archive-orders"`
}

// WooCommerceConfig points at the store backend.
type WooCommerceConfig struct {
	BaseURL        string        `usage:"WooCommerce REST root, e.g. https://shop.example.com/wp-json/wc/v3" flag:"wc-base-url"`
	OptionsURL     string        `usage:"Shipping options page URL" flag:"wc-options-url"`
	ConsumerKey    string        `usage:"WooCommerce consumer key"`
	ConsumerSecret string        `usage:"WooCommerce consumer secret"`
	Timeout        time.Duration `default:"15s" usage:"WooCommerce request timeout"`
}

// StripeConfig selects the Stripe account and how intents are confirmed.
type StripeConfig struct {
	APIKey      string `usage:"Stripe secret key" flag:"stripe-key"`
	Environment string `default:"test" usage:"Stripe environment: test or live" flag:"stripe-env"`
	Currency    string `default:"usd" usage:"Payment currency"`
	ReturnURL   string `usage:"Where customers land after an extra authentication step" flag:"return-url"`

	// PaymentMethodTypes defaults to card and klarna when empty.
	PaymentMethodTypes []string `usage:"Payment method types offered on intents"`
}

// CheckoutConfig tunes the session timings.
type CheckoutConfig struct {
	AddressDebounce     time.Duration `default:"300ms" usage:"Quiet period before re-quoting shipping after address edits"`
	PersistDebounce     time.Duration `default:"100ms" usage:"Coalescing delay for session state writes"`
	ShippingCacheTTL    time.Duration `default:"5m" usage:"How long the shipping table is cached"`
	SessionIdleTimeout  time.Duration `default:"30m" usage:"How long an unused session stays in memory"`
	CreateOrderTimeout  time.Duration `default:"15s" usage:"Order creation timeout"`
	CreateIntentTimeout time.Duration `default:"15s" usage:"Payment intent creation timeout"`
	ConfirmTimeout      time.Duration `default:"30s" usage:"Payment confirmation timeout"`
	UpdateStatusTimeout time.Duration `default:"15s" usage:"Order status update timeout"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
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
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return errors.New("redis URL is required: set STOREFRONT_STORE_REDISURL or REDIS_URL")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORE_DATABASEURL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.ArchiveOrders && c.Store.DatabaseURL == "" {
		return errors.New("archiving orders needs a database URL")
	}
	if c.WooCommerce.BaseURL == "" {
		return errors.New("woocommerce base URL is required: set STOREFRONT_WOOCOMMERCE_BASEURL")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
