package bulkhead

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

// State classifies admission pressure from the current active count.
type State int

const (
	// Open: active < degradationThreshold*max.
	Open State = iota
	// Degraded: active in [degradationThreshold*max, max).
	Degraded
	// Closed: active == max.
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Degraded:
		return "degraded"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Bulkhead.
type Config struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time a caller waits for a slot when none is
	// immediately available. Zero means fail immediately with
	// BULKHEAD_FULL.
	MaxWait time.Duration

	// DegradationThreshold is the active/max fraction at or above which
	// the bulkhead reports Degraded. Default: 0.8
	DegradationThreshold float64

	// OnStateChange fires on every Open/Degraded/Closed transition.
	OnStateChange func(old, new State)
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.DegradationThreshold <= 0 {
		c.DegradationThreshold = 0.8
	}
	return c
}

// Metrics reports a Bulkhead's current counters.
type Metrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Queued        int
	Total         uint64
	Rejected      uint64
	State         State
}

type slotWaiter struct {
	done chan error
	elem *list.Element
}

// Bulkhead limits concurrent operations with a FIFO admission queue.
type Bulkhead struct {
	name   string
	config Config

	mu        sync.Mutex
	active    int
	maxActive int
	queue     *list.List // of *slotWaiter
	total     uint64
	rejected  uint64
	state     State
}

// New creates a Bulkhead for the named service.
func New(name string, cfg Config) *Bulkhead {
	cfg = cfg.withDefaults()
	return &Bulkhead{
		name:   name,
		config: cfg,
		queue:  list.New(),
		state:  Open,
	}
}

func (b *Bulkhead) classifyLocked() State {
	threshold := b.config.DegradationThreshold * float64(b.config.MaxConcurrent)
	switch {
	case b.active >= b.config.MaxConcurrent:
		return Closed
	case float64(b.active) >= threshold:
		return Degraded
	default:
		return Open
	}
}

func (b *Bulkhead) transitionLocked() {
	newState := b.classifyLocked()
	if newState == b.state {
		return
	}
	old := b.state
	b.state = newState
	if cb := b.config.OnStateChange; cb != nil {
		go cb(old, newState)
	}
}

// Acquire takes a slot, queueing FIFO up to MaxWait when none is
// immediately available. Callers MUST call Release on every successful
// Acquire, including on every error path taken after acquiring.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()
	b.total++
	if b.active < b.config.MaxConcurrent {
		b.active++
		if b.active > b.maxActive {
			b.maxActive = b.active
		}
		b.transitionLocked()
		b.mu.Unlock()
		return nil
	}

	if b.config.MaxWait <= 0 {
		b.rejected++
		b.mu.Unlock()
		return fabriberr.New(b.name, "acquire", fabriberr.KindBulkheadFull, nil)
	}

	w := &slotWaiter{done: make(chan error, 1)}
	w.elem = b.queue.PushBack(w)
	b.mu.Unlock()

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case err := <-w.done:
		return err
	case <-timer.C:
		b.removeWaiter(w, fabriberr.New(b.name, "acquire", fabriberr.KindBulkheadWaitTime, nil))
		return fabriberr.New(b.name, "acquire", fabriberr.KindBulkheadWaitTime, nil)
	case <-ctx.Done():
		b.removeWaiter(w, fabriberr.New(b.name, "acquire", fabriberr.KindCancelled, nil))
		return fabriberr.New(b.name, "acquire", fabriberr.KindCancelled, nil)
	}
}

func (b *Bulkhead) removeWaiter(w *slotWaiter, cause error) {
	b.mu.Lock()
	if w.elem != nil {
		b.queue.Remove(w.elem)
		w.elem = nil
		b.rejected++
	}
	b.mu.Unlock()
	select {
	case w.done <- cause:
	default:
	}
}

// TryAcquire is the non-blocking admission check: it takes a slot if one
// is immediately free, never queueing.
func (b *Bulkhead) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	if b.active >= b.config.MaxConcurrent {
		b.rejected++
		return false
	}
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.transitionLocked()
	return true
}

// Release returns a slot, admitting the head of the FIFO queue (if any)
// directly into the freed slot.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	for {
		front := b.queue.Front()
		if front == nil {
			break
		}
		w := front.Value.(*slotWaiter)
		b.queue.Remove(front)
		w.elem = nil
		select {
		case w.done <- nil:
			b.mu.Unlock()
			return
		default:
			continue
		}
	}
	if b.active > 0 {
		b.active--
	}
	b.transitionLocked()
	b.mu.Unlock()
}

// Execute runs op while holding a bulkhead slot, releasing it on every
// return path including a panic recovery-free exceptional return from op.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// TryExecute runs op only if a slot is immediately available, reporting
// whether it was accepted.
func (b *Bulkhead) TryExecute(ctx context.Context, op func(context.Context) error) (accepted bool, err error) {
	if !b.TryAcquire() {
		return false, nil
	}
	defer b.Release()
	return true, op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Queued:        b.queue.Len(),
		Total:         b.total,
		Rejected:      b.rejected,
		State:         b.state,
	}
}

// Shutdown rejects every queued waiter with SHUTDOWN.
func (b *Bulkhead) Shutdown() {
	b.mu.Lock()
	var waiters []*slotWaiter
	for e := b.queue.Front(); e != nil; e = e.Next() {
		waiters = append(waiters, e.Value.(*slotWaiter))
	}
	b.queue.Init()
	b.mu.Unlock()

	cause := fabriberr.New(b.name, "acquire", fabriberr.KindShutdown, nil)
	for _, w := range waiters {
		w.elem = nil
		select {
		case w.done <- cause:
		default:
		}
	}
}
