package sources

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy exponential backoff for forecast calls
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Retrying retries a Source with exponential backoff
type Retrying struct {
	next   Source
	policy RetryPolicy
	log    zerolog.Logger
}

// NewRetrying wraps next. MaxRetries <= 0 disables retries.
func NewRetrying(next Source, policy RetryPolicy, log zerolog.Logger) *Retrying {
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = time.Second
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 10 * time.Second
	}
	return &Retrying{
		next:   next,
		policy: policy,
		log:    log.With().Str("component", "sources.retry").Str("agent_id", next.Name()).Logger(),
	}
}

// Name implements Source
func (r *Retrying) Name() string {
	return r.next.Name()
}

// Forecast implements Source
func (r *Retrying) Forecast(ctx context.Context, prompt string) (string, error) {
	retries := r.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialBackoff
	exp.MaxInterval = r.policy.MaxBackoff
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)

	var text string
	operation := func() error {
		out, err := r.next.Forecast(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		text = out
		return nil
	}

	notify := func(err error, delay time.Duration) {
		r.log.Warn().Err(err).Dur("delay", delay).Msg("forecast call failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return text, nil
}
