package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rentora/service-booking/internal/platform/database"
)

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    database.PostgresConfig
	JWTConfig   JWTConfig
	KafkaConfig KafkaConfig
	RedisConfig RedisConfig
	Booking     BookingConfig
	Upstreams   UpstreamConfig
}

// JWTConfig configures token verification.
type JWTConfig struct {
	Secret string
}

// KafkaConfig configures brokers and consumer groups.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig configures the shared lock and cache backend. An empty Addr keeps both in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BookingConfig holds reservation engine tunables.
type BookingConfig struct {
	LockTTL       time.Duration
	CacheTTL      time.Duration
	PaymentWindow time.Duration
	SweepInterval time.Duration
}

// UpstreamConfig points at the external collaborators.
type UpstreamConfig struct {
	KYCURL     string
	CatalogURL string
	PaymentURL string
	Timeout    time.Duration
}

// Load reads configuration from BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTConfig: JWTConfig{Secret: v.GetString("JWT_SECRET")},
		KafkaConfig: KafkaConfig{
			Brokers:     splitCSV(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		RedisConfig: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Booking: BookingConfig{
			LockTTL:       v.GetDuration("LOCK_TTL"),
			CacheTTL:      v.GetDuration("CACHE_TTL"),
			PaymentWindow: v.GetDuration("PAYMENT_WINDOW"),
			SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
		},
		Upstreams: UpstreamConfig{
			KYCURL:     v.GetString("KYC_URL"),
			CatalogURL: v.GetString("CATALOG_URL"),
			PaymentURL: v.GetString("PAYMENT_URL"),
			Timeout:    v.GetDuration("UPSTREAM_TIMEOUT"),
		},
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8082")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rentora_booking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "rentora-")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("PAYMENT_WINDOW", "24h")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("KYC_URL", "http://localhost:8081")
	v.SetDefault("CATALOG_URL", "http://localhost:8083")
	v.SetDefault("PAYMENT_URL", "http://localhost:8084")
	v.SetDefault("UPSTREAM_TIMEOUT", "5s")
}

func (c *ServiceConfig) validate() error {
	if c.AppEnv == "production" && c.JWTConfig.Secret == "change-me" {
		return fmt.Errorf("BOOKING_JWT_SECRET must be set in production")
	}
	if len(c.KafkaConfig.Brokers) == 0 {
		return fmt.Errorf("BOOKING_KAFKA_BROKERS is required")
	}
	if c.Booking.LockTTL <= 0 {
		return fmt.Errorf("BOOKING_LOCK_TTL must be positive")
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
