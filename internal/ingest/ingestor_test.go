package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/extract"
	"github.com/wonny/pricebattle/internal/ledger"
	"github.com/wonny/pricebattle/internal/quotes"
	"github.com/wonny/pricebattle/internal/settlement"
	"github.com/wonny/pricebattle/internal/sources"
)

var assets = []contracts.Asset{
	{ID: "usdjpy", Name: "USD/JPY", Symbol: "USDJPY=X", Decimals: 3},
	{ID: "spx", Name: "S&P 500", Symbol: "^GSPC", Decimals: 2},
}

type mapQuotes map[string][]contracts.Quote

func (m mapQuotes) DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error) {
	if symbol == "BROKEN" {
		return nil, errors.New("boom")
	}
	return m[symbol], nil
}

type scriptedSource struct {
	name   string
	reply  string
	err    error
	prompt string
	at     []time.Time
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Forecast(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	s.at = append(s.at, time.Now())
	return s.reply, s.err
}

func day(n int) contracts.Date {
	return contracts.NewDate(2024, time.March, n)
}

func market() mapQuotes {
	return mapQuotes{
		"USDJPY=X": {{Date: day(1), Close: 150.12}, {Date: day(4), Close: 150.456}},
		"^GSPC":    {{Date: day(1), Close: 5137.08}, {Date: day(4), Close: 5130.95}},
	}
}

func newIngestor(srcs []*scriptedSource, q quotes.Provider, delay time.Duration) *Ingestor {
	list := make([]sources.Source, 0, len(srcs))
	for _, s := range srcs {
		list = append(list, s)
	}
	engine := settlement.NewEngine(q, assets, settlement.DefaultHorizonDays, zerolog.Nop())
	return New(Config{Assets: assets, HistoryDays: 60, SourceDelay: delay}, list, q, extract.NewExtractor(zerolog.Nop()), engine, zerolog.Nop())
}

func TestRun_AppendsForecasts(t *testing.T) {
	gpt := &scriptedSource{name: "GPT-3.5", reply: "```json\n{\"USD/JPY\": 151.234, \"S&P 500\": 5150.5}\n```"}
	gem := &scriptedSource{name: "Gemini", reply: `Sure! {"USD/JPY": "149.9", "S&P 500": 5100} hope this helps`}

	l := ledger.New(contracts.ModeStrict, zerolog.Nop())
	res := newIngestor([]*scriptedSource{gpt, gem}, market(), 0).Run(context.Background(), l, day(4))

	assert.Equal(t, 4, res.Appended)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, day(11), res.TargetDate)
	assert.Equal(t, 150.456, res.CurrentPrices["usdjpy"])
	require.NotNil(t, res.Predictions["Gemini"]["usdjpy"])
	assert.Equal(t, 149.9, *res.Predictions["Gemini"]["usdjpy"])

	records := l.Records()
	require.Len(t, records, 4)
	for _, r := range records {
		assert.Equal(t, day(4), r.IssueDate)
		assert.Equal(t, day(11), r.TargetDate)
		assert.True(t, r.IsPending())
	}
	assert.Equal(t, "usdjpy", records[0].AssetID)
	assert.Equal(t, 150.456, records[0].ReferencePrice)
	assert.Equal(t, 151.234, records[0].PredictedPrice)

	assert.Equal(t, gpt.prompt, gem.prompt, "every agent sees the same prompt")
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	broken := &scriptedSource{name: "GPT-3.5", err: errors.New("503")}
	garbage := &scriptedSource{name: "Gemini", reply: "I cannot predict markets."}
	partial := &scriptedSource{name: "DeepSeek", reply: `{"USD/JPY": 151.0, "S&P 500": -5}`}

	l := ledger.New(contracts.ModeStrict, zerolog.Nop())
	res := newIngestor([]*scriptedSource{broken, garbage, partial}, market(), 0).Run(context.Background(), l, day(4))

	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 5, res.Failed) // 2 + 2 + rejected negative price
	assert.Nil(t, res.Predictions["GPT-3.5"]["usdjpy"])
	assert.Nil(t, res.Predictions["Gemini"]["spx"])
	assert.Nil(t, res.Predictions["DeepSeek"]["spx"])
	require.NotNil(t, res.Predictions["DeepSeek"]["usdjpy"])
	assert.Equal(t, 1, l.Len())
}

func TestRun_MissingMarketData(t *testing.T) {
	src := &scriptedSource{name: "GPT-3.5", reply: `{"USD/JPY": 151.0, "S&P 500": 5000}`}
	q := mapQuotes{"USDJPY=X": market()["USDJPY=X"]}

	l := ledger.New(contracts.ModeStrict, zerolog.Nop())
	res := newIngestor([]*scriptedSource{src}, q, 0).Run(context.Background(), l, day(4))

	assert.Equal(t, 1, res.Appended, "asset without reference price gets no record")
	assert.NotContains(t, src.prompt, "S&P 500")
	_, ok := res.CurrentPrices["spx"]
	assert.False(t, ok)
}

func TestRun_NoMarketDataSkipsSources(t *testing.T) {
	src := &scriptedSource{name: "GPT-3.5", reply: `{}`}

	l := ledger.New(contracts.ModeStrict, zerolog.Nop())
	res := newIngestor([]*scriptedSource{src}, mapQuotes{}, 0).Run(context.Background(), l, day(4))

	assert.Empty(t, src.at)
	assert.Equal(t, 0, res.Appended)
	assert.Contains(t, res.Predictions, "GPT-3.5")
}

func TestRun_PacesSourceCalls(t *testing.T) {
	a := &scriptedSource{name: "A", reply: `{"USD/JPY": 151.0}`}
	b := &scriptedSource{name: "B", reply: `{"USD/JPY": 151.0}`}

	l := ledger.New(contracts.ModeStrict, zerolog.Nop())
	newIngestor([]*scriptedSource{a, b}, market(), 50*time.Millisecond).Run(context.Background(), l, day(4))

	require.Len(t, a.at, 1)
	require.Len(t, b.at, 1)
	assert.GreaterOrEqual(t, b.at[0].Sub(a.at[0]), 40*time.Millisecond)
}

func TestBuildPrompt(t *testing.T) {
	data := []MarketData{
		{Asset: assets[0], Snapshot: quotes.Snapshot{
			Current: contracts.Quote{Date: day(4), Close: 150.456},
			History: []contracts.Quote{{Date: day(1), Close: 150.12}, {Date: day(4), Close: 150.456}},
		}},
		{Asset: assets[1], Snapshot: quotes.Snapshot{Current: contracts.Quote{Date: day(4), Close: 5130.95}}},
	}

	p := BuildPrompt(data, 5)

	assert.Contains(t, p, "5 business days")
	assert.Contains(t, p, `"USD/JPY": 0.000,`)
	assert.Contains(t, p, `"S&P 500": 0.00`+"\n}")
	assert.Contains(t, p, "### USD/JPY\nCurrent: 150.456\nHistory:\n2024-03-01: 150.120\n2024-03-04: 150.456\n")
	assert.Contains(t, p, "Current: 5130.95")
	assert.True(t, strings.Index(p, "USD/JPY") < strings.Index(p, "S&P 500"))
}
