package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures before
	// opening the circuit. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit. Default: 1
	SuccessThreshold int

	// ResetTimeout is how long to wait before attempting a half-open
	// probe. Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxRequests caps concurrent probes admitted while
	// half-open. Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called on every state transition.
	OnStateChange func(from, to State)

	// IsFailure determines whether an error counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
	return c
}

// Metrics reports a Breaker's current counters.
type Metrics struct {
	State             State
	ConsecutiveFails  int
	ConsecutivePasses int
	LastFailure       time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config Config

	mu                sync.Mutex
	state             State
	consecutiveFails  int
	consecutivePasses int
	lastFailure       time.Time
	halfOpenCount     int
}

// New creates a Breaker for the named service.
func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, config: cfg.withDefaults(), state: StateClosed}
}

// Execute runs op through the circuit breaker.
func (cb *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state, transitioning OPEN->HALF_OPEN
// if ResetTimeout has elapsed.
func (cb *Breaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset forces the circuit back to CLOSED, clearing all counters.
func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	old := cb.state
	cb.state = StateClosed
	cb.consecutiveFails = 0
	cb.consecutivePasses = 0
	cb.halfOpenCount = 0

	if old != StateClosed {
		cb.notify(old, StateClosed)
	}
}

func (cb *Breaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return fabriberr.New(cb.name, "execute", fabriberr.KindCircuitOpen, nil)
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return fabriberr.New(cb.name, "execute", fabriberr.KindCircuitOpen, nil)
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *Breaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	old := cb.state

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.consecutiveFails++
			cb.lastFailure = time.Now()
			if cb.consecutiveFails >= cb.config.FailureThreshold {
				cb.setStateLocked(StateOpen)
			}
		} else {
			cb.consecutiveFails = 0
		}

	case StateHalfOpen:
		// This probe is finished; free its half-open slot.
		if cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		if isFailure {
			cb.lastFailure = time.Now()
			cb.consecutivePasses = 0
			cb.setStateLocked(StateOpen)
		} else {
			cb.consecutivePasses++
			if cb.consecutivePasses >= cb.config.SuccessThreshold {
				cb.setStateLocked(StateClosed)
				cb.consecutiveFails = 0
				cb.consecutivePasses = 0
			}
		}
	}

	if old != cb.state {
		cb.notify(old, cb.state)
	}
}

// currentStateLocked applies the OPEN->HALF_OPEN timeout transition.
// Caller holds cb.mu.
func (cb *Breaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.setStateLocked(StateHalfOpen)
		cb.notify(StateOpen, StateHalfOpen)
	}
	return cb.state
}

func (cb *Breaker) setStateLocked(state State) {
	cb.state = state
	if state == StateHalfOpen {
		cb.halfOpenCount = 0
		cb.consecutivePasses = 0
	}
}

func (cb *Breaker) notify(from, to State) {
	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(from, to)
	}
}

// Metrics returns current circuit breaker statistics.
func (cb *Breaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Metrics{
		State:             cb.currentStateLocked(),
		ConsecutiveFails:  cb.consecutiveFails,
		ConsecutivePasses: cb.consecutivePasses,
		LastFailure:       cb.lastFailure,
	}
}
