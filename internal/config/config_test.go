package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverlay(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SAGA_AUTH__JWT_SECRET", "secret")
	t.Setenv("SAGA_RABBITMQ__MAX_RETRIES", "5")
	t.Setenv("SAGA_ORDER__PENDING_TIMEOUT", "2m")

	cfg, err := Load(ServiceOrder)
	require.NoError(t, err)

	assert.Equal(t, ServiceOrder, cfg.Service)
	assert.Equal(t, ":3032", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5, cfg.RabbitMQ.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Order.PendingTimeout)
	assert.Equal(t, time.Hour, cfg.Redis.ProductTTL)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9999"
auth:
  jwt_secret: from-file
redis:
  product_ttl: 30m
`), 0o600))
	t.Setenv(configFileEnv, path)

	cfg, err := Load(ServicePayment)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Redis.ProductTTL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(ServiceInventory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret required")
}

func TestValidate_EmailService(t *testing.T) {
	var cfg Config
	cfg.Service = ServiceEmail
	cfg.HTTP.Addr = ":3036"
	cfg.RabbitMQ.URL = "amqp://localhost"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr required")
	assert.Contains(t, err.Error(), "smtp.host required")
}
