package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reliabilityfabric/fabric/bulkhead"
	"github.com/reliabilityfabric/fabric/circuit"
	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/internal/ring"
	"github.com/reliabilityfabric/fabric/retry"
	"github.com/reliabilityfabric/fabric/timeout"
)

// Op is the operation a Policy mediates. Result is opaque to the policy;
// Fallback receives it only via the returned error path.
type Op func(ctx context.Context) (any, error)

// Fallback is invoked on any terminal error from the mediated chain. If
// it also errors, that error supersedes the original per §7's
// propagation policy (fallback failures supersede the original).
type Fallback func(ctx context.Context, cause error) (any, error)

// Option configures a Policy. Any pattern left unconfigured is a
// pass-through.
type Option func(*Policy)

// WithBulkhead enables bulkhead admission.
func WithBulkhead(b *bulkhead.Bulkhead) Option {
	return func(p *Policy) { p.bulkhead = b }
}

// WithCircuitBreaker enables circuit breaking.
func WithCircuitBreaker(cb *circuit.Breaker) Option {
	return func(p *Policy) { p.circuit = cb }
}

// WithRetry enables retry.
func WithRetry(r *retry.Retry) Option {
	return func(p *Policy) { p.retry = r }
}

// WithTimeout enables a per-attempt timeout.
func WithTimeout(t *timeout.Timeout) Option {
	return func(p *Policy) { p.timeout = t }
}

// WithFallback wraps the entire chain with fb.
func WithFallback(fb Fallback) Option {
	return func(p *Policy) { p.fallback = fb }
}

// Counts reports activation/success/failure counters for one pattern.
type Counts struct {
	Activations uint64
	Successes   uint64
	Failures    uint64
}

// Metrics reports a Policy's aggregate and per-pattern counters.
type Metrics struct {
	Total, Success, Failure, Timeout, Fallback, Retry uint64
	Bulkhead, Circuit, RetryPattern, TimeoutPattern    Counts
	Latency                                            ring.Stats
}

// Policy composes bulkhead, circuit breaker, retry, and timeout in the
// fixed order BULKHEAD -> CIRCUIT -> RETRY -> TIMEOUT -> (op), with an
// optional fallback wrapping the whole chain.
type Policy struct {
	name string

	bulkhead *bulkhead.Bulkhead
	circuit  *circuit.Breaker
	retry    *retry.Retry
	timeout  *timeout.Timeout
	fallback Fallback

	latencies *ring.Buffer

	mu                                              sync.Mutex
	total, success, failure, timeoutCt, fallbackCt, retryCt uint64
	bulkheadCounts, circuitCounts, retryCounts, timeoutCounts Counts
}

// New creates a Policy for the named service.
func New(name string, opts ...Option) *Policy {
	p := &Policy{name: name, latencies: ring.New(1000)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs op through the configured chain, applying Fallback on any
// terminal error.
func (p *Policy) Execute(ctx context.Context, op Op) (any, error) {
	start := time.Now()
	p.mu.Lock()
	p.total++
	p.mu.Unlock()

	result, err := p.runChain(ctx, op)

	if err != nil && p.fallback != nil {
		p.mu.Lock()
		p.fallbackCt++
		p.mu.Unlock()
		fbResult, fbErr := p.fallback(ctx, err)
		if fbErr != nil {
			err = fabriberr.New(p.name, "fallback", fabriberr.KindFallbackFailed, fbErr)
		} else {
			result, err = fbResult, nil
		}
	}

	p.latencies.Add(float64(time.Since(start).Milliseconds()))
	p.mu.Lock()
	if err != nil {
		p.failure++
	} else {
		p.success++
	}
	p.mu.Unlock()

	return result, err
}

// runChain builds the inside-out chain (timeout innermost, bulkhead
// outermost) and executes it, threading the op's result out through a
// captured variable since the resilience layers only pass errors.
func (p *Policy) runChain(ctx context.Context, op Op) (any, error) {
	var result any

	inner := func(ctx context.Context) error {
		r, err := op(ctx)
		result = r
		return err
	}

	exec := inner

	if p.timeout != nil {
		prev := exec
		exec = func(ctx context.Context) error {
			p.recordActivation(&p.timeoutCounts)
			err := p.timeout.Execute(ctx, prev)
			if err != nil {
				p.recordFailure(&p.timeoutCounts)
				if isKind(err, fabriberr.KindTimeout) {
					p.mu.Lock()
					p.timeoutCt++
					p.mu.Unlock()
				}
			} else {
				p.recordSuccess(&p.timeoutCounts)
			}
			return err
		}
	}

	if p.retry != nil {
		prev := exec
		exec = func(ctx context.Context) error {
			p.recordActivation(&p.retryCounts)
			err := p.retry.Execute(ctx, prev)
			if err != nil {
				p.recordFailure(&p.retryCounts)
			} else {
				p.recordSuccess(&p.retryCounts)
				p.mu.Lock()
				p.retryCt++
				p.mu.Unlock()
			}
			return err
		}
	}

	if p.circuit != nil {
		prev := exec
		exec = func(ctx context.Context) error {
			p.recordActivation(&p.circuitCounts)
			err := p.circuit.Execute(ctx, prev)
			if err != nil {
				p.recordFailure(&p.circuitCounts)
			} else {
				p.recordSuccess(&p.circuitCounts)
			}
			return err
		}
	}

	if p.bulkhead != nil {
		prev := exec
		exec = func(ctx context.Context) error {
			p.recordActivation(&p.bulkheadCounts)
			err := p.bulkhead.Execute(ctx, prev)
			if err != nil {
				p.recordFailure(&p.bulkheadCounts)
			} else {
				p.recordSuccess(&p.bulkheadCounts)
			}
			return err
		}
	}

	err := exec(ctx)
	return result, err
}

func (p *Policy) recordActivation(c *Counts) { atomic.AddUint64(&c.Activations, 1) }
func (p *Policy) recordSuccess(c *Counts)    { atomic.AddUint64(&c.Successes, 1) }
func (p *Policy) recordFailure(c *Counts)    { atomic.AddUint64(&c.Failures, 1) }

func isKind(err error, kind fabriberr.Kind) bool {
	k, ok := fabriberr.KindOf(err)
	return ok && k == kind
}

// Metrics returns the policy's current counters and latency percentiles.
func (p *Policy) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Metrics{
		Total:            p.total,
		Success:          p.success,
		Failure:          p.failure,
		Timeout:          p.timeoutCt,
		Fallback:         p.fallbackCt,
		Retry:            p.retryCt,
		Bulkhead:         p.bulkheadCounts,
		Circuit:          p.circuitCounts,
		RetryPattern:     p.retryCounts,
		TimeoutPattern:   p.timeoutCounts,
		Latency:          ring.Summarize(p.latencies.Snapshot()),
	}
}
