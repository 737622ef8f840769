package app

import (
	"errors"
	"log/slog"

	"github.com/centralpricelist/pricelist/internal/oracle"
	"github.com/centralpricelist/pricelist/internal/pricelist"
)

// NewOracleRegistry builds the providers that have an API key. observe may be
// nil.
func NewOracleRegistry(cfg *Config, logger *slog.Logger, observe oracle.ObserveFunc) *oracle.Registry {
	var completers []oracle.Completer

	openai, err := oracle.NewOpenAI(oracle.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.AITimeout,
	})
	switch {
	case err == nil:
		completers = append(completers, oracle.WithObserver(openai, observe))
	case !errors.Is(err, oracle.ErrNotConfigured):
		logger.Warn("openai provider disabled", slog.Any("error", err))
	}

	anthropic, err := oracle.NewAnthropic(oracle.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
		BaseURL: cfg.AnthropicBaseURL,
		Timeout: cfg.AITimeout,
	})
	switch {
	case err == nil:
		completers = append(completers, oracle.WithObserver(anthropic, observe))
	case !errors.Is(err, oracle.ErrNotConfigured):
		logger.Warn("anthropic provider disabled", slog.Any("error", err))
	}

	if len(completers) == 0 {
		logger.Warn("no oracle provider configured, pdf uploads will be rejected")
	}
	return oracle.NewRegistry(logger, completers...)
}

// PricelistConfig maps the runtime configuration onto the orchestrator.
func (c *Config) PricelistConfig() pricelist.Config {
	return pricelist.Config{
		DefaultProvider: c.AIProvider,
		SheetAnalysis:   c.AISheetAnalysis,
		SheetWorkers:    c.SheetWorkers,
		MaxUploadBytes:  c.UploadMaxBytes,
		DefaultMarkup:   c.DefaultMarkup,
	}
}
