package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "harvest.db", cfg.DBPath)
	assert.Equal(t, "admin", cfg.AdminPassword)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "https://api.web3forms.com/submit", cfg.FormsEndpoint)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HARVEST_ADDR", ":9090")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("HARVEST_ADMIN_PASSWORD", "s3cret")
	t.Setenv("MYSQL_DSN", "user:pw@tcp(db:4000)/harvest?tls=tidb")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "s3cret", cfg.AdminPassword)
	assert.Equal(t, "user:pw@tcp(db:4000)/harvest?tls=tidb", cfg.MySQLDSN)
}

func TestLoadConfigRejectsBadBool(t *testing.T) {
	t.Setenv("DEV_MODE", "maybe")

	_, err := loadConfig()
	assert.ErrorContains(t, err, "parse env")
}

func TestAssistantKey(t *testing.T) {
	assert.Equal(t, "g", Config{GeminiAPIKey: "g", LegacyAPIKey: "l"}.AssistantKey())
	assert.Equal(t, "l", Config{LegacyAPIKey: "l"}.AssistantKey())
	assert.Empty(t, Config{}.AssistantKey())
}
