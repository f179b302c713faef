package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/extract"
	"github.com/wonny/pricebattle/internal/ledger"
	"github.com/wonny/pricebattle/internal/quotes"
	"github.com/wonny/pricebattle/internal/sources"
)

// HistoryTail closes shown per asset in the prompt
const HistoryTail = 30

// TargetDater maps an issue date to its target date
type TargetDater interface {
	TargetDate(issue contracts.Date) contracts.Date
	HorizonDays() int
}

// Config ingestion settings
type Config struct {
	Assets      []contracts.Asset
	HistoryDays int
	SourceDelay time.Duration // 연속 source 호출 간격
}

// Ingestor asks every source for forecasts and appends them to the ledger
type Ingestor struct {
	cfg       Config
	sources   []sources.Source
	quotes    quotes.Provider
	extractor *extract.Extractor
	calendar  TargetDater
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// Result what one ingestion produced
type Result struct {
	IssueDate     contracts.Date
	TargetDate    contracts.Date
	CurrentPrices map[string]float64             // asset id → reference price
	Predictions   map[string]map[string]*float64 // agent id → asset id → prediction (nil = unavailable)
	Appended      int
	Failed        int // 응답/추출/검증 실패 데이터 포인트
}

// New creates an ingestor; sources are called in the given order
func New(cfg Config, srcs []sources.Source, q quotes.Provider, ex *extract.Extractor, cal TargetDater, log zerolog.Logger) *Ingestor {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 60
	}

	limit := rate.Inf
	if cfg.SourceDelay > 0 {
		limit = rate.Every(cfg.SourceDelay)
	}

	return &Ingestor{
		cfg:       cfg,
		sources:   srcs,
		quotes:    q,
		extractor: ex,
		calendar:  cal,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log.With().Str("component", "ingest").Logger(),
	}
}

// Run collects today's forecasts. Failures on one asset or agent only drop that data point.
func (i *Ingestor) Run(ctx context.Context, l *ledger.Ledger, today contracts.Date) Result {
	res := Result{
		IssueDate:     today,
		TargetDate:    i.calendar.TargetDate(today),
		CurrentPrices: map[string]float64{},
		Predictions:   map[string]map[string]*float64{},
	}

	market := i.loadMarket(ctx, today)
	for _, md := range market {
		res.CurrentPrices[md.Asset.ID] = md.Snapshot.Current.Close
	}

	for _, src := range i.sources {
		preds := make(map[string]*float64, len(i.cfg.Assets))
		for _, a := range i.cfg.Assets {
			preds[a.ID] = nil
		}
		res.Predictions[src.Name()] = preds
	}

	if len(market) == 0 {
		i.log.Warn().Str("issue_date", today.String()).Msg("no market data, skipping forecast requests")
		return res
	}

	prompt := BuildPrompt(market, i.calendar.HorizonDays())

	for _, src := range i.sources {
		if err := i.limiter.Wait(ctx); err != nil {
			i.log.Warn().Err(err).Str("agent_id", src.Name()).Msg("pacing interrupted")
			res.Failed += len(market)
			continue
		}

		values, ok := i.ask(ctx, src, prompt)
		if !ok {
			res.Failed += len(market)
			continue
		}

		for _, md := range market {
			v, found := values.Get(md.Asset.Name)
			if !found {
				v, found = values.Get(md.Asset.ID)
			}
			if !found {
				i.log.Warn().
					Str("agent_id", src.Name()).
					Str("asset_id", md.Asset.ID).
					Msg("forecast missing for asset")
				res.Failed++
				continue
			}

			rec := contracts.ForecastRecord{
				IssueDate:      today,
				TargetDate:     res.TargetDate,
				AssetID:        md.Asset.ID,
				AgentID:        src.Name(),
				ReferencePrice: md.Snapshot.Current.Close,
				PredictedPrice: v,
			}
			if _, err := l.Append(rec); err != nil {
				i.log.Warn().
					Err(err).
					Str("agent_id", src.Name()).
					Str("asset_id", md.Asset.ID).
					Float64("predicted", v).
					Msg("forecast rejected")
				res.Failed++
				continue
			}

			pred := v
			res.Predictions[src.Name()][md.Asset.ID] = &pred
			res.Appended++
		}
	}

	i.log.Info().
		Str("issue_date", today.String()).
		Str("target_date", res.TargetDate.String()).
		Int("assets", len(market)).
		Int("sources", len(i.sources)).
		Int("appended", res.Appended).
		Int("failed", res.Failed).
		Msg("ingestion completed")

	return res
}

func (i *Ingestor) loadMarket(ctx context.Context, today contracts.Date) []MarketData {
	var out []MarketData
	for _, a := range i.cfg.Assets {
		snap, ok, err := quotes.Recent(ctx, i.quotes, a.Symbol, today, i.cfg.HistoryDays, HistoryTail)
		if err != nil {
			i.log.Warn().Err(err).Str("asset_id", a.ID).Str("symbol", a.Symbol).Msg("market data fetch failed")
			continue
		}
		if !ok {
			i.log.Warn().
				Err(contracts.ErrQuoteUnavailable).
				Str("asset_id", a.ID).
				Str("symbol", a.Symbol).
				Msg("no market data")
			continue
		}
		out = append(out, MarketData{Asset: a, Snapshot: snap})
	}
	return out
}

func (i *Ingestor) ask(ctx context.Context, src sources.Source, prompt string) (extract.Values, bool) {
	text, err := src.Forecast(ctx, prompt)
	if err != nil {
		evt := i.log.Warn()
		if errors.Is(err, context.Canceled) {
			evt = i.log.Info()
		}
		evt.Err(err).Str("agent_id", src.Name()).Msg("forecast source failed")
		return nil, false
	}

	values, ok := i.extractor.Extract(text)
	if !ok {
		i.log.Warn().
			Err(contracts.ErrExtractionFailure).
			Str("agent_id", src.Name()).
			Int("chars", len(text)).
			Msg("no structured forecast in response")
		return nil, false
	}
	return values, true
}
