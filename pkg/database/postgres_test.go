package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/backtrackers-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "registry",
		Password: "secret",
		Name:     "backtrackers",
		SSLMode:  "require",
	})
	assert.Equal(t, "host=db port=5433 user=registry password=secret dbname=backtrackers sslmode=require", dsn)
}
