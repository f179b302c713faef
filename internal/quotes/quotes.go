package quotes

import (
	"context"

	"github.com/wonny/pricebattle/internal/contracts"
)

// Provider daily closing prices, ascending by date.
// A symbol or range without data yields an empty series and a nil error.
type Provider interface {
	DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error)
}

// Snapshot latest close plus the trailing history shown to forecast sources
type Snapshot struct {
	Symbol  string
	Current contracts.Quote
	History []contracts.Quote
}

// Recent loads the last historyDays calendar days for symbol and keeps the newest
// tail closes. ok=false when the window has no data.
func Recent(ctx context.Context, p Provider, symbol string, today contracts.Date, historyDays, tail int) (Snapshot, bool, error) {
	series, err := p.DailyCloses(ctx, symbol, today.AddDays(-historyDays), today)
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(series) == 0 {
		return Snapshot{}, false, nil
	}

	history := series
	if tail > 0 && len(history) > tail {
		history = history[len(history)-tail:]
	}

	return Snapshot{
		Symbol:  symbol,
		Current: series[len(series)-1],
		History: history,
	}, true, nil
}
