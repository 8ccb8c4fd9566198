package degrade

import (
	"context"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/timeout"
)

// Level is a rung on the degradation ladder, ordered from best to worst.
type Level int

const (
	// Full runs the primary implementation only.
	Full Level = iota
	// Partial runs a partial fallback after the primary has failed.
	Partial
	// Minimal runs a minimal fallback.
	Minimal
	// Emergency serves a static or cached response.
	Emergency
)

// String names a Level.
func (l Level) String() string {
	switch l {
	case Full:
		return "FULL"
	case Partial:
		return "PARTIAL"
	case Minimal:
		return "MINIMAL"
	case Emergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// Health projects a Level onto the coarse health.Status scale:
// FULL->HEALTHY, PARTIAL->DEGRADED, MINIMAL->UNHEALTHY, EMERGENCY->OFFLINE.
func (l Level) Health() health.Status {
	switch l {
	case Full:
		return health.StatusHealthy
	case Partial:
		return health.StatusDegraded
	case Minimal:
		return health.StatusUnhealthy
	default:
		return health.StatusOffline
	}
}

// Stage is one rung's implementation, keyed by the Level it runs under.
type Stage func(ctx context.Context) (any, error)

// Config configures a Ladder.
type Config struct {
	// Stages maps each Level to its implementation. Full is required;
	// any level with no Stage falls through to the next worse level
	// that has one.
	Stages map[Level]Stage

	// AttemptTimeout bounds each stage attempt. Default: 10s
	AttemptTimeout time.Duration

	// FailThreshold is consecutive failures before stepping down one
	// level. Default: 3
	FailThreshold int

	// RecoverThreshold is consecutive successes before stepping up one
	// level. Default: 5
	RecoverThreshold int

	// HealthOverride, if set, replaces the coarse Level->Health
	// projection.
	HealthOverride func(Level) health.Status
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.FailThreshold <= 0 {
		c.FailThreshold = 3
	}
	if c.RecoverThreshold <= 0 {
		c.RecoverThreshold = 5
	}
	return c
}

// Ladder runs operations under a service's current degradation level,
// stepping the level down on sustained failure and up on sustained
// recovery.
type Ladder struct {
	name   string
	config Config
	to     *timeout.Timeout

	mu               sync.Mutex
	level            Level
	consecutiveFails int
	consecutiveOK    int
	availability     float64
	executions       uint64
	successes        uint64
}

// New creates a Ladder for the named service, starting at Full.
func New(name string, cfg Config) *Ladder {
	cfg = cfg.withDefaults()
	return &Ladder{
		name:         name,
		config:       cfg,
		to:           timeout.New(name, timeout.Config{Duration: cfg.AttemptTimeout}),
		level:        Full,
		availability: 1,
	}
}

// Level returns the current degradation level.
func (l *Ladder) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Health returns the current coarse health projection.
func (l *Ladder) Health() health.Status {
	l.mu.Lock()
	level := l.level
	l.mu.Unlock()
	if l.config.HealthOverride != nil {
		return l.config.HealthOverride(level)
	}
	return level.Health()
}

// Availability returns the rolling fraction of successful executions.
func (l *Ladder) Availability() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availability
}

// Execute runs the fallback chain starting at the current level: the
// first level at or below the current level that has a registered
// Stage is attempted, wrapped in a timeout. The outcome updates the
// consecutive success/failure counters and may step the level.
func (l *Ladder) Execute(ctx context.Context) (any, error) {
	l.mu.Lock()
	level := l.level
	l.mu.Unlock()

	stage, ok := l.stageAtOrBelow(level)
	if !ok {
		return nil, fabriberr.New(l.name, "execute", fabriberr.KindUnknownService, nil)
	}

	var result any
	err := l.to.Execute(ctx, func(ctx context.Context) error {
		r, err := stage(ctx)
		result = r
		return err
	})

	l.recordOutcome(err == nil)
	return result, err
}

func (l *Ladder) stageAtOrBelow(level Level) (Stage, bool) {
	for lvl := level; lvl <= Emergency; lvl++ {
		if s, ok := l.config.Stages[lvl]; ok {
			return s, true
		}
	}
	return nil, false
}

func (l *Ladder) recordOutcome(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.executions++
	if success {
		l.successes++
	}
	if l.executions > 0 {
		l.availability = float64(l.successes) / float64(l.executions)
	}

	if success {
		l.consecutiveOK++
		l.consecutiveFails = 0
		if l.consecutiveOK >= l.config.RecoverThreshold && l.level > Full {
			l.level--
			l.consecutiveOK = 0
		}
	} else {
		l.consecutiveFails++
		l.consecutiveOK = 0
		if l.consecutiveFails >= l.config.FailThreshold && l.level < Emergency {
			l.level++
			l.consecutiveFails = 0
		}
	}
}
