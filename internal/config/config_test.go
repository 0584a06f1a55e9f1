package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.AppPort)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.False(t, cfg.IsProd)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.TxTimeout)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.TrustedProxies)

	assert.Equal(t, "127.0.0.1", cfg.DB.Host)
	assert.Equal(t, "3306", cfg.DB.Port)
	assert.Equal(t, "corebank", cfg.DB.Name)
	assert.Equal(t, 5*time.Second, cfg.DB.LockWaitTimeout)
	assert.Equal(t, 20, cfg.DB.MaxOpenConns)

	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	assert.Equal(t, "500", cfg.Ledger.DefaultCreditLimit.String())
	assert.False(t, cfg.Ledger.EnforceCreditLimit)
	assert.False(t, cfg.Ledger.CheckClampedPayment)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":            "s3cret",
		"APP_PORT":              "9090",
		"IS_PROD":               "true",
		"STORE_DRIVER":          "memory",
		"TOKEN_TTL":             "30m",
		"REDIS_ADDR":            "redis:6379",
		"REDIS_DB":              "2",
		"TRUSTED_PROXIES":       "10.0.0.1,10.0.0.2",
		"DEFAULT_CREDIT_LIMIT":  "750.50",
		"ENFORCE_CREDIT_LIMIT":  "true",
		"CHECK_CLAMPED_PAYMENT": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.True(t, cfg.IsProd)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
	assert.Equal(t, "750.5", cfg.Ledger.DefaultCreditLimit.String())
	assert.True(t, cfg.Ledger.EnforceCreditLimit)
	assert.True(t, cfg.Ledger.CheckClampedPayment)
}

func TestLoadWith_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret":  {},
		"unknown driver":  {"JWT_SECRET": "x", "STORE_DRIVER": "sqlite"},
		"zero ttl":        {"JWT_SECRET": "x", "TOKEN_TTL": "0s"},
		"zero tx timeout": {"JWT_SECRET": "x", "TX_TIMEOUT": "0s"},
		"zero rate limit": {"JWT_SECRET": "x", "RATE_LIMIT_MAX": "0"},
		"zero credit":     {"JWT_SECRET": "x", "DEFAULT_CREDIT_LIMIT": "0"},
		"bad duration":    {"JWT_SECRET": "x", "TX_TIMEOUT": "soon"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
