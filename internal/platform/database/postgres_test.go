package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_ConnectionStrings(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "booking",
		Password: "secret",
		DBName:   "bookings",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5432 user=booking password=secret dbname=bookings sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://booking:secret@db:5432/bookings?sslmode=disable", cfg.DatabaseURL())
}
