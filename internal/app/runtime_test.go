package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/centralpricelist/pricelist/internal/testing/guard"
)

func TestGuardEnablesTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", " Anthropic ")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.AIProvider)
	assert.Equal(t, int64(50<<20), cfg.UploadMaxBytes)
	assert.Nil(t, cfg.DefaultMarkup)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("AI_PROVIDER", "gemini")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("DEFAULT_MARKUP", "-5")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("DEFAULT_MARKUP", "35")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.DefaultMarkup)
	assert.Equal(t, 35.0, *cfg.DefaultMarkup)
}

func TestLoadConfigRequiresAdminHashInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$04$abcdefghijklmnopqrstuu")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSkipStartupFollowsTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, SkipStartup("api"))

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, SkipStartup("api"))

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
}
