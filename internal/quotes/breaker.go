package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	cb "github.com/sony/gobreaker"

	"github.com/wonny/pricebattle/internal/contracts"
)

// BreakerSettings trip rule for per-symbol circuit breakers
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

// Breaker per-symbol circuit breaker in front of a Provider.
// An open breaker answers with an upstream error without calling next.
type Breaker struct {
	next     Provider
	settings BreakerSettings
	mu       sync.Mutex
	breakers map[string]*cb.CircuitBreaker
	log      zerolog.Logger
}

// NewBreaker wraps next
func NewBreaker(next Provider, settings BreakerSettings, log zerolog.Logger) *Breaker {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 3
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 60 * time.Second
	}
	return &Breaker{
		next:     next,
		settings: settings,
		breakers: make(map[string]*cb.CircuitBreaker),
		log:      log.With().Str("component", "quotes.breaker").Logger(),
	}
}

func (b *Breaker) breaker(symbol string) *cb.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if br, ok := b.breakers[symbol]; ok {
		return br
	}

	st := cb.Settings{Name: "quotes:" + symbol}
	st.Interval = 0 // closed 상태에서 카운트 유지
	st.Timeout = b.settings.Timeout
	threshold := b.settings.ConsecutiveFailures
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		b.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
	}

	br := cb.NewCircuitBreaker(st)
	b.breakers[symbol] = br
	return br
}

// DailyCloses implements Provider
func (b *Breaker) DailyCloses(ctx context.Context, symbol string, from, to contracts.Date) ([]contracts.Quote, error) {
	res, err := b.breaker(symbol).Execute(func() (interface{}, error) {
		return b.next.DailyCloses(ctx, symbol, from, to)
	})
	if err != nil {
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			return nil, &contracts.UpstreamError{Source: "quotes:" + symbol, Err: err}
		}
		return nil, err
	}
	series, _ := res.([]contracts.Quote)
	return series, nil
}

// State current breaker state for symbol
func (b *Breaker) State(symbol string) cb.State {
	return b.breaker(symbol).State()
}
