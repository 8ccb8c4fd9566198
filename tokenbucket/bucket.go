package tokenbucket

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

// Config configures a single named bucket.
type Config struct {
	// Rate is the number of tokens added per second.
	// Default: 100
	Rate float64

	// MaxTokens is the burst capacity. Default: 10
	MaxTokens float64

	// QueueEnabled allows Consume to wait for tokens instead of failing
	// immediately when the bucket is empty.
	QueueEnabled bool

	// MaxQueueSize bounds the number of waiters accepted while queueing.
	// Default: 1000
	MaxQueueSize int
}

func (c Config) withDefaults() Config {
	if c.Rate <= 0 {
		c.Rate = 100
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 10
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	return c
}

// Status reports a bucket's current counters and admission state.
type Status struct {
	Name       string
	Tokens     float64
	MaxTokens  float64
	Queued     int
	Throttled  bool
	Total      uint64
	Allowed    uint64
	Rejected   uint64
	QueuedTotal uint64
}

// ConsumeResult is returned by Bucket.Consume.
type ConsumeResult struct {
	OK     bool
	Waited time.Duration
}

type waiter struct {
	needed   float64
	deadline time.Time
	done     chan error
	elem     *list.Element // self-pointer for O(1) queue removal
}

// Bucket is a single named token bucket with a FIFO waiter queue.
type Bucket struct {
	name string

	mu          sync.Mutex
	config      Config
	tokens      float64
	lastRefill  time.Time
	queue       *list.List // of *waiter
	total       uint64
	allowed     uint64
	rejected    uint64
	queuedTotal uint64
}

func newBucket(name string, cfg Config) *Bucket {
	cfg = cfg.withDefaults()
	return &Bucket{
		name:       name,
		config:     cfg,
		tokens:     cfg.MaxTokens,
		lastRefill: time.Now(),
		queue:      list.New(),
	}
}

// reconfigure updates rate/capacity in place, preserving counters and
// queued waiters (a reconfigured bucket keeps serving its queue; see
// DESIGN.md for the adaptive-limiter re-registration decision).
func (b *Bucket) reconfigure(cfg Config) {
	cfg = cfg.withDefaults()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if cfg.MaxTokens < b.tokens {
		b.tokens = cfg.MaxTokens
	}
	b.config = cfg
}

func (b *Bucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * b.config.Rate
	if b.tokens > b.config.MaxTokens {
		b.tokens = b.config.MaxTokens
	}
}

// tryConsumeLocked attempts to take n tokens without blocking. Caller
// holds b.mu.
func (b *Bucket) tryConsumeLocked(n float64) bool {
	b.refillLocked()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// TryConsume is the non-blocking admission check.
func (b *Bucket) TryConsume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if b.tryConsumeLocked(float64(n)) {
		b.allowed++
		return true
	}
	b.rejected++
	return false
}

// Consume blocks, queueing FIFO if tokens are unavailable and queueing is
// enabled, until n tokens are admitted, the deadline passes, or ctx is
// cancelled.
func (b *Bucket) Consume(ctx context.Context, n int, maxWait time.Duration) (ConsumeResult, error) {
	start := time.Now()

	b.mu.Lock()
	b.total++
	// Tokens go to queued waiters first; a newcomer takes them directly
	// only when nobody is waiting.
	if b.queue.Len() == 0 && b.tryConsumeLocked(float64(n)) {
		b.allowed++
		b.mu.Unlock()
		return ConsumeResult{OK: true}, nil
	}

	if !b.config.QueueEnabled {
		b.rejected++
		b.mu.Unlock()
		return ConsumeResult{}, newError(b.name, "consume", fabriberr.KindRateLimitExceeded)
	}
	if b.queue.Len() >= b.config.MaxQueueSize {
		b.rejected++
		b.mu.Unlock()
		return ConsumeResult{}, newError(b.name, "consume", fabriberr.KindRateLimitQueueFull)
	}

	deadline := start.Add(maxWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	w := &waiter{needed: float64(n), deadline: deadline, done: make(chan error, 1)}
	w.elem = b.queue.PushBack(w)
	b.queuedTotal++
	b.mu.Unlock()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case err := <-w.done:
		if err != nil {
			return ConsumeResult{}, err
		}
		return ConsumeResult{OK: true, Waited: time.Since(start)}, nil
	case <-timer.C:
		b.removeWaiter(w, newError(b.name, "consume", fabriberr.KindRateLimitTimeout))
		return ConsumeResult{}, newError(b.name, "consume", fabriberr.KindRateLimitTimeout)
	case <-ctx.Done():
		b.removeWaiter(w, newError(b.name, "consume", fabriberr.KindCancelled))
		return ConsumeResult{}, newError(b.name, "consume", fabriberr.KindCancelled)
	}
}

// removeWaiter evicts w from the queue if it is still queued (it may have
// already been satisfied by refill racing this call) and resolves done
// exactly once.
func (b *Bucket) removeWaiter(w *waiter, cause error) {
	b.mu.Lock()
	if w.elem != nil {
		b.queue.Remove(w.elem)
		w.elem = nil
		b.mu.Unlock()
		select {
		case w.done <- cause:
		default:
		}
		return
	}
	b.mu.Unlock()
}

// refillAndDrain adds tokens for elapsed time and admits queued waiters in
// FIFO order while tokens remain. Invoked by the caller holding no lock.
func (b *Bucket) refillAndDrain() {
	b.mu.Lock()
	b.refillLocked()
	for {
		front := b.queue.Front()
		if front == nil {
			break
		}
		w := front.Value.(*waiter)
		if b.tokens < w.needed {
			break
		}
		b.tokens -= w.needed
		b.allowed++
		b.queue.Remove(front)
		w.elem = nil
		select {
		case w.done <- nil:
		default:
		}
	}
	b.mu.Unlock()
}

// Status reports the bucket's current counters and admission state.
func (b *Bucket) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return Status{
		Name:        b.name,
		Tokens:      b.tokens,
		MaxTokens:   b.config.MaxTokens,
		Queued:      b.queue.Len(),
		Throttled:   b.tokens < 0.10*b.config.MaxTokens,
		Total:       b.total,
		Allowed:     b.allowed,
		Rejected:    b.rejected,
		QueuedTotal: b.queuedTotal,
	}
}

// shutdown rejects every queued waiter with SHUTDOWN.
func (b *Bucket) shutdown() {
	b.mu.Lock()
	var waiters []*waiter
	for e := b.queue.Front(); e != nil; e = e.Next() {
		waiters = append(waiters, e.Value.(*waiter))
	}
	b.queue.Init()
	b.mu.Unlock()

	cause := newError(b.name, "consume", fabriberr.KindShutdown)
	for _, w := range waiters {
		w.elem = nil
		select {
		case w.done <- cause:
		default:
		}
	}
}
