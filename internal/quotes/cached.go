package quotes

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/pkg/redis"
)

// Cached read-through Redis cache in front of a Provider.
// Ranges ending before today are final and kept longer.
type Cached struct {
	next    Provider
	cache   *redis.Cache
	openTTL time.Duration
	today   func() contracts.Date
	log     zerolog.Logger
}

// NewCached wraps next with cache; openTTL applies to ranges that include today
func NewCached(next Provider, cache *redis.Cache, openTTL time.Duration, today func() contracts.Date, log zerolog.Logger) *Cached {
	if openTTL <= 0 {
		openTTL = redis.TTLShort
	}
	return &Cached{
		next:    next,
		cache:   cache,
		openTTL: openTTL,
		today:   today,
		log:     log.With().Str("component", "quotes.cache").Logger(),
	}
}

// DailyCloses implements Provider
func (c *Cached) DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error) {
	key := redis.QuotesKey(symbol, from.String(), to.String())

	var cached []contracts.Quote
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("quote cache read failed")
	}
	if found {
		return cached, nil
	}

	series, err := c.next.DailyCloses(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	// 빈 결과는 캐시하지 않음 (다음 실행에서 재시도)
	if len(series) == 0 {
		return series, nil
	}

	ttl := redis.TTLDaily
	if !to.Before(c.today()) {
		ttl = c.openTTL
	}
	if err := c.cache.Set(ctx, key, series, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("quote cache write failed")
	}
	return series, nil
}
