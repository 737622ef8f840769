package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/centralpricelist/pricelist/internal/oracle"
)

func TestNewOracleRegistrySkipsProvidersWithoutKeys(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := NewOracleRegistry(&Config{}, logger, nil)
	assert.Empty(t, reg.Available())
	_, err := reg.Select(oracle.ProviderOpenAI)
	assert.ErrorIs(t, err, oracle.ErrNotConfigured)

	reg = NewOracleRegistry(&Config{OpenAIAPIKey: "sk-test"}, logger, nil)
	assert.Equal(t, []string{oracle.ProviderOpenAI}, reg.Available())

	reg = NewOracleRegistry(&Config{OpenAIAPIKey: "sk-test", AnthropicAPIKey: "ak-test"}, logger, func(string, error) {})
	assert.Equal(t, []string{oracle.ProviderOpenAI, oracle.ProviderAnthropic}, reg.Available())
	c, err := reg.Select(oracle.ProviderAnthropic)
	assert.NoError(t, err)
	assert.Equal(t, oracle.ProviderAnthropic, c.Name())
}

func TestPricelistConfig(t *testing.T) {
	markup := 35.0
	cfg := &Config{AIProvider: "anthropic", AISheetAnalysis: true, SheetWorkers: 2, UploadMaxBytes: 1024, DefaultMarkup: &markup}
	got := cfg.PricelistConfig()
	assert.Equal(t, "anthropic", got.DefaultProvider)
	assert.True(t, got.SheetAnalysis)
	assert.Equal(t, 2, got.SheetWorkers)
	assert.Equal(t, int64(1024), got.MaxUploadBytes)
	assert.Equal(t, &markup, got.DefaultMarkup)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, logLevel(nil))
	assert.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "debug"}))
	assert.Equal(t, slog.LevelWarn, logLevel(&Config{LogLevel: " WARN "}))
	assert.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "chatty"}))
}

func TestRequestTimeoutCoversOracleCalls(t *testing.T) {
	assert.Equal(t, 60*time.Second, RequestTimeout(nil))
	assert.Equal(t, 45*time.Second, RequestTimeout(&Config{AppRequestTimeout: 45 * time.Second}))
	assert.Equal(t, 150*time.Second, RequestTimeout(&Config{AppRequestTimeout: 60 * time.Second, AITimeout: 120 * time.Second}))
	assert.Equal(t, 5*time.Minute, RequestTimeout(&Config{AppRequestTimeout: 5 * time.Minute, AITimeout: 2 * time.Minute}))
}
