package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://localhost/shop", cfg.Store.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", Store: StoreConfig{RedisURL: "redis://cache"}}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr, "explicit address wins")
	assert.Equal(t, "redis://cache", cfg.Store.RedisURL)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:       StoreConfig{Driver: StoreMemory},
			WooCommerce: WooCommerceConfig{BaseURL: "https://shop.example.com/wp-json/wc/v3"},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{name: "Memory", modify: func(*Config) {}},
		{name: "RedisWithURL", modify: func(c *Config) { c.Store.Driver, c.Store.RedisURL = StoreRedis, "redis://x" }},
		{name: "RedisWithoutURL", modify: func(c *Config) { c.Store.Driver = StoreRedis }, err: "redis URL"},
		{name: "PostgresWithoutURL", modify: func(c *Config) { c.Store.Driver = StorePostgres }, err: "database URL"},
		{name: "UnknownDriver", modify: func(c *Config) { c.Store.Driver = "etcd" }, err: "unknown store driver"},
		{name: "ArchiveWithoutURL", modify: func(c *Config) { c.Store.ArchiveOrders = true }, err: "archiving orders"},
		{name: "NoWooCommerce", modify: func(c *Config) { c.WooCommerce.BaseURL = "" }, err: "woocommerce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.validate()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}
