package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_test_123")
	t.Setenv("FROM_EMAIL", "news@example.com")
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("FROM_EMAIL", "news@example.com")

	_, err := LoadWithOptions(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY")
}

func TestLoad_RequiresFromEmail(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_test_123")
	t.Setenv("FROM_EMAIL", "")

	_, err := LoadWithOptions(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FROM_EMAIL")
}

func TestLoad_RejectsInvalidFromEmail(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_test_123")
	t.Setenv("FROM_EMAIL", "not-an-address")

	_, err := LoadWithOptions(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadWithOptions(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Limits.Daily)
	assert.Equal(t, 60, cfg.Limits.PerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 10, cfg.Scheduler.DefaultConcurrency)
	assert.Equal(t, 300*time.Second, cfg.Webhook.ReplayWindow)
	assert.Equal(t, "https://api.resend.com", cfg.Provider.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DAILY_LIMIT", "50")
	t.Setenv("PER_MINUTE_LIMIT", "120")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("CONCURRENCY_DEFAULT", "25")
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithOptions(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Limits.Daily)
	assert.Equal(t, 120, cfg.Limits.PerMinute)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 25, cfg.Scheduler.DefaultConcurrency)
	assert.Equal(t, "whsec_abc", cfg.Webhook.Secret)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsOutOfRangeConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONCURRENCY_DEFAULT", "5000")

	_, err := LoadWithOptions(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONCURRENCY_DEFAULT")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.local",
		Port:     5433,
		User:     "mc",
		Password: "secret",
		DBName:   "mailcannon",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=db.local port=5433 user=mc password=secret dbname=mailcannon sslmode=disable",
		d.DSN())
}

func TestProviderConfig_FromHeader(t *testing.T) {
	p := ProviderConfig{FromEmail: "news@example.com"}
	assert.Equal(t, "news@example.com", p.FromHeader())

	p.FromName = "Example News"
	assert.Equal(t, "Example News <news@example.com>", p.FromHeader())
}
