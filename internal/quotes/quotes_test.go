package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/pkg/redis"
)

type stubProvider struct {
	series []contracts.Quote
	err    error
	calls  int
}

func (s *stubProvider) DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error) {
	s.calls++
	return s.series, s.err
}

func d(day int) contracts.Date {
	return contracts.NewDate(2024, time.January, day)
}

func TestYahoo_DailyCloses(t *testing.T) {
	tokyo := 9 * 3600
	// 09:00 JST candles; 2024-01-03 is a zero candle
	at := func(day int) int64 {
		return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC).Unix()
	}

	var gotStart, gotEnd time.Time
	y := NewYahoo(zerolog.Nop())
	y.fetch = func(symbol string, start, end time.Time) ([]bar, int, error) {
		gotStart, gotEnd = start, end
		return []bar{
			{Timestamp: at(4), Close: decimal.RequireFromString("33288.29")},
			{Timestamp: at(2), Close: decimal.RequireFromString("33464.17")},
			{Timestamp: at(3), Close: decimal.Zero},
			{Timestamp: at(10), Close: decimal.RequireFromString("34441.72")},
		}, tokyo, nil
	}

	got, err := y.DailyCloses(context.Background(), "^N225", d(2), d(5))
	require.NoError(t, err)

	assert.Equal(t, d(2).Time, gotStart)
	assert.Equal(t, d(6).Time, gotEnd, "end is exclusive")
	assert.Equal(t, []contracts.Quote{
		{Date: d(2), Close: 33464.17},
		{Date: d(4), Close: 33288.29},
	}, got)
}

func TestYahoo_UpstreamError(t *testing.T) {
	y := NewYahoo(zerolog.Nop())
	y.fetch = func(string, time.Time, time.Time) ([]bar, int, error) {
		return nil, 0, errors.New("429 too many requests")
	}

	_, err := y.DailyCloses(context.Background(), "^GSPC", d(1), d(5))
	assert.ErrorIs(t, err, contracts.ErrUpstreamCall)
}

func TestRecent(t *testing.T) {
	p := &stubProvider{series: []contracts.Quote{
		{Date: d(2), Close: 1}, {Date: d(3), Close: 2}, {Date: d(4), Close: 3},
	}}

	snap, ok, err := Recent(context.Background(), p, "X", d(5), 60, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, snap.Current.Close)
	assert.Len(t, snap.History, 2)
	assert.Equal(t, d(3), snap.History[0].Date)

	_, ok, err = Recent(context.Background(), &stubProvider{}, "X", d(5), 60, 30)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	inner := &stubProvider{series: []contracts.Quote{{Date: d(2), Close: 150}}}
	today := func() contracts.Date { return d(20) }
	c := NewCached(inner, redis.NewCache(client, "battle"), time.Minute, today, zerolog.Nop())
	ctx := context.Background()

	first, err := c.DailyCloses(ctx, "^GSPC", d(1), d(5))
	require.NoError(t, err)
	second, err := c.DailyCloses(ctx, "^GSPC", d(1), d(5))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 24*time.Hour, mr.TTL("battle:cache:quotes:^GSPC:2024-01-01:2024-01-05"))

	// Open range ending today: short TTL
	_, _ = c.DailyCloses(ctx, "^GSPC", d(1), d(20))
	assert.Equal(t, time.Minute, mr.TTL("battle:cache:quotes:^GSPC:2024-01-01:2024-01-20"))
}

func TestCached_EmptyNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	inner := &stubProvider{}
	c := NewCached(inner, redis.NewCache(client, "battle"), time.Minute, func() contracts.Date { return d(20) }, zerolog.Nop())

	_, _ = c.DailyCloses(context.Background(), "X", d(1), d(5))
	_, _ = c.DailyCloses(context.Background(), "X", d(1), d(5))
	assert.Equal(t, 2, inner.calls)
}

func TestCached_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()
	mr.Close()

	inner := &stubProvider{series: []contracts.Quote{{Date: d(2), Close: 150}}}
	c := NewCached(inner, redis.NewCache(client, "battle"), time.Minute, func() contracts.Date { return d(20) }, zerolog.Nop())

	got, err := c.DailyCloses(context.Background(), "X", d(1), d(5))
	require.NoError(t, err, "cache failure must not fail the lookup")
	assert.Len(t, got, 1)
}

func TestCached_CorruptEntryRefetched(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	key := "battle:cache:" + redis.QuotesKey("X", d(1).String(), d(5).String())
	require.NoError(t, mr.Set(key, "garbage"))

	inner := &stubProvider{series: []contracts.Quote{{Date: d(2), Close: 150}}}
	c := NewCached(inner, redis.NewCache(client, "battle"), time.Minute, func() contracts.Date { return d(20) }, zerolog.Nop())

	got, err := c.DailyCloses(context.Background(), "X", d(1), d(5))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, _ = c.DailyCloses(context.Background(), "X", d(1), d(5))
	assert.Equal(t, 1, inner.calls, "rewritten entry serves the second lookup")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{err: errors.New("boom")}
	b := NewBreaker(inner, BreakerSettings{ConsecutiveFailures: 2, Timeout: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.DailyCloses(ctx, "^N225", d(1), d(5))
		assert.Error(t, err)
	}
	assert.Equal(t, cb.StateOpen, b.State("^N225"))

	_, err := b.DailyCloses(ctx, "^N225", d(1), d(5))
	assert.ErrorIs(t, err, contracts.ErrUpstreamCall)
	assert.Equal(t, 2, inner.calls, "open breaker must not call upstream")

	// Other symbols unaffected
	assert.Equal(t, cb.StateClosed, b.State("^GSPC"))
}

func TestBreaker_PassesThrough(t *testing.T) {
	inner := &stubProvider{series: []contracts.Quote{{Date: d(2), Close: 1}}}
	b := NewBreaker(inner, BreakerSettings{}, zerolog.Nop())

	got, err := b.DailyCloses(context.Background(), "X", d(1), d(5))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
