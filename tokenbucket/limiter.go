package tokenbucket

import (
	"context"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

// RefillInterval is the cadence of the background ticker that refills
// every registered bucket and wakes its queued waiters in bounded time.
const RefillInterval = 100 * time.Millisecond

// Limiter is a registry of named token buckets, refilled lazily on every
// operation and periodically by a shared background ticker.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket

	stop   chan struct{}
	closed bool
}

// NewLimiter starts a Limiter with its background refill ticker running.
func NewLimiter() *Limiter {
	l := &Limiter{
		buckets: make(map[string]*Bucket),
		stop:    make(chan struct{}),
	}
	go l.refillLoop()
	return l
}

func (l *Limiter) refillLoop() {
	ticker := time.NewTicker(RefillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.RLock()
			buckets := make([]*Bucket, 0, len(l.buckets))
			for _, b := range l.buckets {
				buckets = append(buckets, b)
			}
			l.mu.RUnlock()
			for _, b := range buckets {
				b.refillAndDrain()
			}
		case <-l.stop:
			return
		}
	}
}

// Register creates or replaces the named bucket's configuration.
// Re-registering an existing bucket preserves its counters and in-flight
// waiters (see Bucket.reconfigure).
func (l *Limiter) Register(name string, cfg Config) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[name]; ok {
		b.reconfigure(cfg)
		return b
	}
	b := newBucket(name, cfg)
	l.buckets[name] = b
	return b
}

// Unregister removes a bucket, rejecting any queued waiters with SHUTDOWN.
// A no-op if name is not registered.
func (l *Limiter) Unregister(name string) {
	l.mu.Lock()
	b, ok := l.buckets[name]
	if ok {
		delete(l.buckets, name)
	}
	l.mu.Unlock()
	if ok {
		b.shutdown()
	}
}

func (l *Limiter) bucket(name string) (*Bucket, error) {
	l.mu.RLock()
	b, ok := l.buckets[name]
	l.mu.RUnlock()
	if !ok {
		return nil, newError(name, "lookup", fabriberr.KindUnknownService)
	}
	return b, nil
}

// TryConsume is the non-blocking admission check for the named bucket.
func (l *Limiter) TryConsume(name string, n int) (bool, error) {
	b, err := l.bucket(name)
	if err != nil {
		return false, err
	}
	return b.TryConsume(n), nil
}

// Consume blocks (FIFO-queued) until n tokens are admitted for the named
// bucket, maxWait elapses, or ctx is cancelled.
func (l *Limiter) Consume(ctx context.Context, name string, n int, maxWait time.Duration) (ConsumeResult, error) {
	b, err := l.bucket(name)
	if err != nil {
		return ConsumeResult{}, err
	}
	return b.Consume(ctx, n, maxWait)
}

// Status reports the named bucket's current counters.
func (l *Limiter) Status(name string) (Status, error) {
	b, err := l.bucket(name)
	if err != nil {
		return Status{}, err
	}
	return b.Status(), nil
}

// Close stops the refill ticker and rejects every queued waiter in every
// bucket with SHUTDOWN.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	buckets := make([]*Bucket, 0, len(l.buckets))
	for _, b := range l.buckets {
		buckets = append(buckets, b)
	}
	l.mu.Unlock()

	close(l.stop)
	for _, b := range buckets {
		b.shutdown()
	}
}
