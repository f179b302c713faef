package quotes

import (
	"context"
	"sort"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/pricebattle/internal/contracts"
)

// bar daily candle reduced to what settlement needs
type bar struct {
	Timestamp int64
	Close     decimal.Decimal
}

// fetchFunc returns bars and the exchange GMT offset in seconds
type fetchFunc func(symbol string, start, end time.Time) ([]bar, int, error)

// Yahoo quote provider backed by the Yahoo Finance chart API
type Yahoo struct {
	fetch fetchFunc
	log   zerolog.Logger
}

// NewYahoo creates a Yahoo Finance provider
func NewYahoo(log zerolog.Logger) *Yahoo {
	return &Yahoo{
		fetch: chartFetch,
		log:   log.With().Str("component", "quotes.yahoo").Logger(),
	}
}

func chartFetch(symbol string, start, end time.Time) ([]bar, int, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, bar{Timestamp: int64(b.Timestamp), Close: b.Close})
	}
	if err := iter.Err(); err != nil {
		return nil, 0, err
	}
	return bars, iter.Meta().Gmtoffset, nil
}

// DailyCloses closes in [from, to], one per exchange-local trading date
func (y *Yahoo) DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, nil
	}

	// chart end is exclusive
	bars, offset, err := y.fetch(symbol, from.Time, to.AddDays(1).Time)
	if err != nil {
		return nil, &contracts.UpstreamError{Source: "yahoo", Err: err}
	}

	zone := time.FixedZone(symbol, offset)
	byDate := make(map[contracts.Date]contracts.Quote, len(bars))
	for _, b := range bars {
		closeF, _ := b.Close.Float64()
		if closeF <= 0 {
			continue // 거래 없음 (휴장일 빈 캔들)
		}
		d := contracts.DateOf(time.Unix(b.Timestamp, 0).In(zone))
		if d.Before(from) || d.After(to) {
			continue
		}
		// 같은 날짜에 장중 캔들이 겹치면 마지막 값 사용
		byDate[d] = contracts.Quote{Date: d, Close: closeF}
	}

	out := make([]contracts.Quote, 0, len(byDate))
	for _, q := range byDate {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	y.log.Debug().
		Str("symbol", symbol).
		Str("from", from.String()).
		Str("to", to.String()).
		Int("bars", len(bars)).
		Int("quotes", len(out)).
		Msg("daily closes fetched")

	return out, nil
}
