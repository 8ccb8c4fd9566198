package timeout

import (
	"context"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

// Config configures a Timeout.
type Config struct {
	// Duration is the maximum time allowed for the operation.
	// Default: 30s
	Duration time.Duration
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = 30 * time.Second
	}
	return c
}

// Timeout wraps an operation with a deadline.
type Timeout struct {
	name   string
	config Config
}

// New creates a Timeout for the named service.
func New(name string, cfg Config) *Timeout {
	return &Timeout{name: name, config: cfg.withDefaults()}
}

// Execute runs op under a deadline derived from ctx. If the deadline
// fires first, Execute returns immediately with TIMEOUT; op's own
// goroutine must observe the derived context's cancellation to stop.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Duration)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fabriberr.New(t.name, "execute", fabriberr.KindTimeout, nil)
		}
		return fabriberr.New(t.name, "execute", fabriberr.KindCancelled, ctx.Err())
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() Config {
	return t.config
}

// Execute is a convenience function running op under a one-off timeout
// without constructing a Timeout value.
func Execute(ctx context.Context, name string, d time.Duration, op func(context.Context) error) error {
	return New(name, Config{Duration: d}).Execute(ctx, op)
}
