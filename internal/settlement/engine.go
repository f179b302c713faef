package settlement

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/ledger"
)

// ErrorRatePlaces decimal places kept for error_rate
const ErrorRatePlaces = 6

// QuoteProvider daily closing prices for a symbol, ascending by date.
// An empty series with a nil error means no data for the range.
type QuoteProvider interface {
	DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error)
}

// Engine matures pending forecasts against realized prices
type Engine struct {
	quotes  QuoteProvider
	assets  map[string]contracts.Asset
	horizon int
	log     zerolog.Logger
}

// Summary outcome counts of one settlement pass
type Summary struct {
	Eligible int `json:"eligible"`
	Settled  int `json:"settled"`
	Deferred int `json:"deferred"` // 가격 없음 → 다음 실행에서 재시도
	Skipped  int `json:"skipped"`  // 다른 작업이 claim 중
}

// NewEngine creates a settlement engine
func NewEngine(quotes QuoteProvider, assets []contracts.Asset, horizonDays int, log zerolog.Logger) *Engine {
	byID := make(map[string]contracts.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Engine{
		quotes:  quotes,
		assets:  byID,
		horizon: horizonDays,
		log:     log.With().Str("component", "settlement.engine").Logger(),
	}
}

// TargetDate maturity date for a forecast issued on issue
func (e *Engine) TargetDate(issue contracts.Date) contracts.Date {
	return TargetDate(issue, e.horizon)
}

// HorizonDays configured horizon in business days
func (e *Engine) HorizonDays() int {
	return e.horizon
}

// Settle judges rec against the realized price actual.
// Already settled records, and actual prices that are not positive finite
// numbers, leave rec unchanged.
func Settle(rec contracts.ForecastRecord, actual float64) contracts.ForecastRecord {
	if !rec.IsPending() || !contracts.IsPositiveFinite(actual) || !contracts.IsPositiveFinite(rec.PredictedPrice) {
		return rec
	}

	predictedUp := rec.PredictedPrice > rec.ReferencePrice
	actualUp := actual > rec.ReferencePrice
	correct := predictedUp == actualUp

	a := decimal.NewFromFloat(actual)
	errRate, _ := decimal.NewFromFloat(rec.PredictedPrice).
		Sub(a).
		Abs().
		DivRound(a, ErrorRatePlaces+2).
		Round(ErrorRatePlaces).
		Float64()

	rec.ActualPrice = &actual
	rec.DirectionCorrect = &correct
	rec.ErrorRate = &errRate
	rec.Status = contracts.StatusSettled
	return rec
}

// SettleAll settles every eligible pending record in l as of asOf.
// Quotes are fetched once per asset; records without an obtainable price stay pending.
func (e *Engine) SettleAll(ctx context.Context, l *ledger.Ledger, asOf contracts.Date) Summary {
	var sum Summary

	groups := make(map[string][]ledger.Entry)
	var order []string
	for ent := range l.PendingEligibleForSettlement(asOf) {
		if _, ok := groups[ent.Record.AssetID]; !ok {
			order = append(order, ent.Record.AssetID)
		}
		groups[ent.Record.AssetID] = append(groups[ent.Record.AssetID], ent)
		sum.Eligible++
	}

	for _, assetID := range order {
		entries := groups[assetID]

		select {
		case <-ctx.Done():
			e.log.Warn().Str("asset_id", assetID).Msg("context cancelled during settlement")
			sum.Deferred += len(entries)
			continue
		default:
		}

		quotes, ok := e.fetch(ctx, assetID, entries, asOf)
		if !ok {
			sum.Deferred += len(entries)
			continue
		}

		for _, ent := range entries {
			switch e.settleEntry(l, ent, quotes, asOf) {
			case outcomeSettled:
				sum.Settled++
			case outcomeDeferred:
				sum.Deferred++
			default:
				sum.Skipped++
			}
		}
	}

	e.log.Info().
		Str("as_of", asOf.String()).
		Int("eligible", sum.Eligible).
		Int("settled", sum.Settled).
		Int("deferred", sum.Deferred).
		Int("skipped", sum.Skipped).
		Msg("settlement completed")

	return sum
}

type outcome int

const (
	outcomeSettled outcome = iota
	outcomeDeferred
	outcomeSkipped
)

func (e *Engine) settleEntry(l *ledger.Ledger, ent ledger.Entry, quotes []contracts.Quote, asOf contracts.Date) outcome {
	if err := l.Claim(ent.ID); err != nil {
		e.log.Debug().Err(err).Uint64("record", ent.ID).Msg("record not claimable")
		return outcomeSkipped
	}

	rec := ent.Record
	q, ok := PickQuote(quotes, rec.IssueDate, rec.TargetDate, asOf)
	if !ok {
		l.Release(ent.ID)
		e.log.Warn().
			Str("asset_id", rec.AssetID).
			Str("agent_id", rec.AgentID).
			Str("target_date", rec.TargetDate.String()).
			Msg("realized price unavailable, record stays pending")
		return outcomeDeferred
	}

	settled := Settle(rec, q.Close)
	if err := l.Resolve(ent.ID, settled); err != nil {
		e.log.Warn().Err(err).Uint64("record", ent.ID).Msg("resolve failed")
		return outcomeSkipped
	}

	e.log.Debug().
		Str("asset_id", rec.AssetID).
		Str("agent_id", rec.AgentID).
		Str("quote_date", q.Date.String()).
		Float64("actual", q.Close).
		Bool("direction_correct", *settled.DirectionCorrect).
		Float64("error_rate", *settled.ErrorRate).
		Msg("record settled")
	return outcomeSettled
}

// fetch loads closes covering every entry's settlement window
func (e *Engine) fetch(ctx context.Context, assetID string, entries []ledger.Entry, asOf contracts.Date) ([]contracts.Quote, bool) {
	asset, ok := e.assets[assetID]
	if !ok {
		e.log.Warn().Str("asset_id", assetID).Int("records", len(entries)).Msg("unknown asset, records stay pending")
		return nil, false
	}

	from := entries[0].Record.IssueDate
	for _, ent := range entries[1:] {
		if ent.Record.IssueDate.Before(from) {
			from = ent.Record.IssueDate
		}
	}
	from = from.AddDays(1)

	quotes, err := e.quotes.DailyCloses(ctx, asset.Symbol, from, asOf)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("asset_id", assetID).
			Str("symbol", asset.Symbol).
			Msg("quote fetch failed, records stay pending")
		return nil, false
	}
	return quotes, true
}

// PickQuote chooses the realized price for a record issued on issue maturing on target.
// The exact target-date close wins; otherwise the latest close in (issue, asOf].
func PickQuote(quotes []contracts.Quote, issue, target, asOf contracts.Date) (contracts.Quote, bool) {
	candidates := make([]contracts.Quote, 0, len(quotes))
	for _, q := range quotes {
		if !contracts.IsPositiveFinite(q.Close) || !q.Date.After(issue) || q.Date.After(asOf) {
			continue
		}
		if q.Date.Equal(target) {
			return q, true
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return contracts.Quote{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date.Before(candidates[j].Date)
	})
	return candidates[len(candidates)-1], true
}
