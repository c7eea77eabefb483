package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8082", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Booking.LockTTL)
	assert.Equal(t, 24*time.Hour, cfg.Booking.PaymentWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.Empty(t, cfg.RedisConfig.Addr)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BOOKING_SERVICE_PORT", ":9000")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BOOKING_REDIS_ADDR", "redis:6379")
	t.Setenv("BOOKING_LOCK_TTL", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, "redis:6379", cfg.RedisConfig.Addr)
	assert.Equal(t, 45*time.Second, cfg.Booking.LockTTL)
}

func TestLoad_RejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("BOOKING_APP_ENV", "production")

	_, err := Load()
	assert.Error(t, err)
}
