package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Policy configures retry behavior.
type Policy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // upper bound for any single delay
	Multiplier float64       // exponential growth factor
	Jitter     bool          // add up to ±10% random jitter
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
	Logger    zerolog.Logger
}

// DefaultPolicy returns a policy of 3 retries starting at 1s, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		Logger:     zerolog.Nop(),
	}
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts the
// policy, or ctx is done. It returns op's last error, or ctx.Err() when the
// context ended the loop.
func Do(ctx context.Context, p Policy, op func() error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err = op()
		if err == nil {
			if attempt > 0 {
				p.Logger.Debug().Int("attempts", attempt+1).Msg("operation succeeded after retry")
			}
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := Delay(p, attempt)
		p.Logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", p.MaxRetries+1).
			Dur("backoff", delay).
			Msg("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Delay computes the backoff before retry number attempt+1.
func Delay(p Policy, attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		spread := delay * 0.1
		delay += (rand.Float64()*2 - 1) * spread
		if delay < 0 {
			delay = float64(p.BaseDelay)
		}
	}
	return time.Duration(delay)
}
