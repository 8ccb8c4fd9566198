package retry

import (
	"context"
	"math"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/internal/prng"
)

// Strategy defines how delays increase between attempts.
type Strategy int

const (
	// Exponential multiplies the delay by Multiplier each attempt.
	Exponential Strategy = iota
	// Linear increases the delay linearly with the attempt number.
	Linear
	// Constant uses InitialDelay for every attempt.
	Constant
)

// Config configures a Retry.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the
	// first. Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts. Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier. Default: 2.0
	Multiplier float64

	// Strategy selects the backoff shape. Default: Exponential
	Strategy Strategy

	// Jitter multiplies each computed delay by a uniform draw in
	// [0.5, 1.0] when true.
	Jitter bool

	// Random supplies jitter draws. Default: a private prng.New().
	Random prng.Source

	// RetryIf determines whether an error triggers a retry.
	// Default: all non-nil errors are retried.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt's backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = func(err error) bool { return err != nil }
	}
	if c.Random == nil {
		c.Random = prng.New()
	}
	return c
}

// Retry runs an operation with configurable backoff between attempts.
type Retry struct {
	name   string
	config Config
}

// New creates a Retry for the named service.
func New(name string, cfg Config) *Retry {
	return &Retry{name: name, config: cfg.withDefaults()}
}

// Execute runs op, retrying per the configured Strategy/RetryIf until it
// succeeds, a non-retryable error is returned, MaxAttempts is exhausted,
// or ctx is cancelled during a backoff sleep.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fabriberr.New(r.name, "retry", fabriberr.KindCancelled, ctx.Err())
		default:
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return fabriberr.New(r.name, "retry", fabriberr.KindCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fabriberr.New(r.name, "retry", fabriberr.KindRetryExhausted, lastErr)
}

// calculateDelay computes delay_i per Strategy, applies uniform
// [0.5,1.0] jitter when enabled, and caps at MaxDelay.
func (r *Retry) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case Constant:
		delay = r.config.InitialDelay
	case Linear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	default: // Exponential
		multiplier := math.Pow(r.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay > 0 {
		factor := 0.5 + 0.5*r.config.Random.Float64()
		delay = time.Duration(float64(delay) * factor)
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() Config {
	return r.config
}
