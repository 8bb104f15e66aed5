package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "ledger_db", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)

	assert.Equal(t, 30, cfg.Suggestion.WindowDays)
	assert.Equal(t, 24*time.Hour, cfg.Suggestion.CacheTTL)

	assert.False(t, cfg.Rabbit.Enabled)
	assert.Equal(t, "ledger_exchange", cfg.Rabbit.Exchange)
	assert.Equal(t, "balance_events", cfg.Rabbit.Queue)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("SUGGESTION_WINDOW_DAYS", "7")
	t.Setenv("SUGGESTION_CACHE_TTL_SECONDS", "60")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 7, cfg.Suggestion.WindowDays)
	assert.Equal(t, time.Minute, cfg.Suggestion.CacheTTL)
	assert.True(t, cfg.Rabbit.Enabled)
}
