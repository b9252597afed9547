package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.NetworkRetryDelay)
	assert.Equal(t, time.Second, cfg.Sync.BaseDelay)
	assert.Equal(t, 7, cfg.Sync.RetentionDays)
	assert.Equal(t, "none", cfg.Printer.Type)
	assert.Equal(t, 32, cfg.Printer.Width)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("REMOTE_BASE_URL", "https://pos.example.com")
	t.Setenv("STORE_DRIVER", "postgres")

	cfg := Load()

	assert.Equal(t, 45*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "https://pos.example.com/health", cfg.Remote.HealthURL())
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: "5432", Name: "n", User: "u", Password: "p", SSLMode: "disable", Timezone: "UTC"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", db.DSN())
}
