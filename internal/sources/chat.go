package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/pkg/config"
)

// generator the part of an eino chat model a Source needs
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Chat source backed by an eino chat model
type Chat struct {
	name  string
	model generator
	log   zerolog.Logger
}

func newChat(name string, m generator, log zerolog.Logger) *Chat {
	return &Chat{
		name:  name,
		model: m,
		log:   log.With().Str("component", "sources.chat").Str("agent_id", name).Logger(),
	}
}

// NewOpenAI OpenAI chat completions via eino
func NewOpenAI(ctx context.Context, name string, cfg config.SourceConfig, log zerolog.Logger) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return newChat(name, m, log), nil
}

// NewDeepSeek DeepSeek chat via eino
func NewDeepSeek(ctx context.Context, name string, cfg config.SourceConfig, log zerolog.Logger) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	m, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return newChat(name, m, log), nil
}

// Name implements Source
func (c *Chat) Name() string {
	return c.name
}

// Forecast implements Source
func (c *Chat) Forecast(ctx context.Context, prompt string) (string, error) {
	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", &contracts.UpstreamError{Source: c.name, Err: err}
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", &contracts.UpstreamError{Source: c.name, Err: errors.New("empty completion")}
	}

	c.log.Debug().Int("chars", len(msg.Content)).Msg("completion received")
	return msg.Content, nil
}
