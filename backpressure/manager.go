package backpressure

import (
	"runtime"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/internal/prng"
)

// Level classifies the current pressure score.
type Level int

const (
	Low Level = iota
	Normal
	High
	CriticalLevel
)

// String names a Level.
func (l Level) String() string {
	switch l {
	case Normal:
		return "NORMAL"
	case High:
		return "HIGH"
	case CriticalLevel:
		return "CRITICAL"
	default:
		return "LOW"
	}
}

// Strategy decides how load is shed once shedding is enabled.
type Strategy int

const (
	RejectNew Strategy = iota
	ShedLowPriority
	Proportional
	Delay
)

// Source supplies the application-specific counters the manager cannot
// derive from the Go runtime on its own.
type Source interface {
	PendingTasks() int
	ErrorRate() float64
	CacheHitRate() float64
}

// Config configures a Manager.
type Config struct {
	Strategy Strategy
	Source   Source

	// SampleInterval is how often Sample runs automatically when Start
	// is used. Default: 1s
	SampleInterval time.Duration

	// MaxAlloc bounds the memory-fraction sample, mirroring
	// health.MemoryChecker's MaxAlloc. Default: runtime.MemStats.Sys
	MaxAlloc uint64

	// CritEventLoopLagMs, HighEventLoopLagMs bound the lag component.
	CritEventLoopLagMs float64
	HighEventLoopLagMs float64

	// CritPending, HighPending bound the pending-task component.
	CritPending int
	HighPending int

	// CritErrorRate, HighErrorRate bound the error-rate component.
	CritErrorRate float64
	HighErrorRate float64

	// HighPressureFactor, CriticalPressureFactor multiply an external
	// rate limiter's rate when RateLimitFactor is consulted at HIGH and
	// CRITICAL pressure, respectively. Default: 0.5, 0.1
	HighPressureFactor     float64
	CriticalPressureFactor float64
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = time.Second
	}
	if c.CritEventLoopLagMs <= 0 {
		c.CritEventLoopLagMs = 100
	}
	if c.HighEventLoopLagMs <= 0 {
		c.HighEventLoopLagMs = 50
	}
	if c.CritPending <= 0 {
		c.CritPending = 1000
	}
	if c.HighPending <= 0 {
		c.HighPending = 500
	}
	if c.CritErrorRate <= 0 {
		c.CritErrorRate = 0.5
	}
	if c.HighErrorRate <= 0 {
		c.HighErrorRate = 0.2
	}
	if c.HighPressureFactor <= 0 {
		c.HighPressureFactor = 0.5
	}
	if c.CriticalPressureFactor <= 0 {
		c.CriticalPressureFactor = 0.1
	}
	return c
}

// Sample is one pressure reading.
type Sample struct {
	MemoryFraction float64
	EventLoopLagMs float64
	PendingTasks   int
	ErrorRate      float64
	CacheHitRate   float64
	Score          float64
	Level          Level
}

// Decision reports whether a request of the given priority should be
// shed, and if not shed under the DELAY strategy, a recommended delay.
type Decision struct {
	Shed  bool
	Delay time.Duration
}

// Manager samples system load and makes shedding decisions.
type Manager struct {
	config Config
	rnd    prng.Source

	mu         sync.Mutex
	lastSample Sample

	stop chan struct{}
	done chan struct{}
}

// New creates a Manager. rnd is used for the PROPORTIONAL strategy and
// the DELAY strategy's recommended-delay jitter; pass nil to use a
// non-deterministic source.
func New(cfg Config, rnd prng.Source) *Manager {
	cfg = cfg.withDefaults()
	if rnd == nil {
		rnd = prng.New()
	}
	return &Manager{config: cfg, rnd: rnd}
}

// Sample takes one reading, computing the pressure score and level,
// and records it as the current sample.
func (m *Manager) Sample() Sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	maxAlloc := m.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = mem.Sys
	}
	memFraction := 0.0
	if maxAlloc > 0 {
		memFraction = float64(mem.Alloc) / float64(maxAlloc)
		if memFraction > 1 {
			memFraction = 1
		}
	}

	lag := m.probeEventLoopLag()

	var pending int
	var errRate, cacheHit float64
	if m.config.Source != nil {
		pending = m.config.Source.PendingTasks()
		errRate = m.config.Source.ErrorRate()
		cacheHit = m.config.Source.CacheHitRate()
	}

	score := 30*memFraction +
		30*clamp(lag/m.config.CritEventLoopLagMs) +
		20*clamp(float64(pending)/float64(m.config.CritPending)) +
		20*clamp(errRate/m.config.CritErrorRate)

	level := m.classify(memFraction, lag, pending, errRate, score)

	s := Sample{
		MemoryFraction: memFraction,
		EventLoopLagMs: lag,
		PendingTasks:   pending,
		ErrorRate:      errRate,
		CacheHitRate:   cacheHit,
		Score:          score,
		Level:          level,
	}

	m.mu.Lock()
	m.lastSample = s
	m.mu.Unlock()

	return s
}

func (m *Manager) classify(mem, lag float64, pending int, errRate, score float64) Level {
	critical := mem >= 1 ||
		lag >= m.config.CritEventLoopLagMs ||
		pending >= m.config.CritPending ||
		errRate >= m.config.CritErrorRate
	if critical {
		return CriticalLevel
	}

	high := lag >= m.config.HighEventLoopLagMs ||
		pending >= m.config.HighPending ||
		errRate >= m.config.HighErrorRate
	if high {
		return High
	}

	if score > 30 {
		return Normal
	}
	return Low
}

// probeEventLoopLag measures scheduling delay as a CPU-pressure proxy:
// the gap between requesting a near-immediate wakeup and receiving it.
func (m *Manager) probeEventLoopLag() float64 {
	const probe = 1 * time.Millisecond
	start := time.Now()
	<-time.After(probe)
	actual := time.Since(start)
	lag := (actual - probe).Milliseconds()
	if lag < 0 {
		lag = 0
	}
	return float64(lag)
}

// LastSample returns the most recent Sample, or the zero value if none
// has been taken yet.
func (m *Manager) LastSample() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSample
}

// RateLimitFactor returns the multiplier to apply to an external rate
// limiter's rate given the current pressure level: 1 at LOW/NORMAL,
// HighPressureFactor at HIGH, CriticalPressureFactor at CRITICAL.
func (m *Manager) RateLimitFactor() float64 {
	switch m.LastSample().Level {
	case CriticalLevel:
		return m.config.CriticalPressureFactor
	case High:
		return m.config.HighPressureFactor
	default:
		return 1
	}
}

// Decide applies the configured strategy to the current level for a
// request of the given priority ("low", "high", or any caller-defined
// value).
func (m *Manager) Decide(priority string) Decision {
	s := m.LastSample()

	sheddingEnabled := s.Level == CriticalLevel ||
		(s.Level == High && s.PendingTasks > m.config.HighPending)
	if !sheddingEnabled {
		return Decision{}
	}

	switch m.config.Strategy {
	case RejectNew:
		return Decision{Shed: true}
	case ShedLowPriority:
		return Decision{Shed: priority == "low"}
	case Proportional:
		if priority == "high" {
			return Decision{}
		}
		return Decision{Shed: m.rnd.Bernoulli(0.5)}
	case Delay:
		return Decision{Delay: m.recommendedDelay(s.Level)}
	default:
		return Decision{}
	}
}

func (m *Manager) recommendedDelay(level Level) time.Duration {
	var lo, hi time.Duration
	if level == CriticalLevel {
		lo, hi = 500*time.Millisecond, 1000*time.Millisecond
	} else {
		lo, hi = 100*time.Millisecond, 300*time.Millisecond
	}
	span := hi - lo
	return lo + time.Duration(m.rnd.Float64()*float64(span))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Start launches a background goroutine sampling at SampleInterval
// until Stop is called.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.config.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sample()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the background sampling goroutine started by Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
