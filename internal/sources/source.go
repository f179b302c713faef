package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/pkg/config"
	"github.com/wonny/pricebattle/pkg/httputil"
)

// Source forecasting agent: natural-language prompt in, free-form text out
type Source interface {
	Name() string
	Forecast(ctx context.Context, prompt string) (string, error)
}

// Providers
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

// ErrMissingAPIKey provider configured without credentials
var ErrMissingAPIKey = errors.New("api key not configured")

// New builds the source for agent selected by its provider, wrapped with retry.
// agent.Model overrides the provider default model.
func New(ctx context.Context, agent contracts.Agent, cfg *config.Config, client *httputil.Client, log zerolog.Logger) (Source, error) {
	var (
		src Source
		err error
	)

	switch agent.Provider {
	case ProviderOpenAI:
		src, err = NewOpenAI(ctx, agent.ID, withModel(cfg.OpenAI, agent.Model), log)
	case ProviderDeepSeek:
		src, err = NewDeepSeek(ctx, agent.ID, withModel(cfg.DeepSeek, agent.Model), log)
	case ProviderGemini:
		src, err = NewGemini(agent.ID, withModel(cfg.Gemini, agent.Model), client, log)
	default:
		return nil, fmt.Errorf("agent %s: unknown provider %q", agent.ID, agent.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agent.ID, err)
	}

	return NewRetrying(src, RetryPolicy{
		MaxRetries:     cfg.Retry.MaxRetries,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, log), nil
}

func withModel(sc config.SourceConfig, model string) config.SourceConfig {
	if model != "" {
		sc.Model = model
	}
	return sc
}
