package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/pkg/config"
	"github.com/wonny/pricebattle/pkg/httputil"
)

// Gemini source over the generateContent REST endpoint
type Gemini struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *httputil.Client
	log     zerolog.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGemini creates a Gemini source
func NewGemini(name string, cfg config.SourceConfig, client *httputil.Client, log zerolog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Gemini{
		name:    name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		log:     log.With().Str("component", "sources.gemini").Str("agent_id", name).Logger(),
	}, nil
}

// Name implements Source
func (g *Gemini) Name() string {
	return g.name
}

// Forecast implements Source
func (g *Gemini) Forecast(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}

	resp, err := g.client.PostJSON(ctx, endpoint, body)
	if err != nil {
		return "", &contracts.UpstreamError{Source: g.name, Err: err}
	}

	var out geminiResponse
	if err := httputil.DecodeJSON(resp, &out); err != nil {
		return "", &contracts.UpstreamError{Source: g.name, Err: err}
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &contracts.UpstreamError{Source: g.name, Err: errors.New("no candidates in response")}
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	g.log.Debug().Int("chars", sb.Len()).Msg("completion received")
	return sb.String(), nil
}
