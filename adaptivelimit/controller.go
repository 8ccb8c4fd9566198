package adaptivelimit

import (
	"math"
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/tokenbucket"
)

// Strategy controls how aggressively a reconciliation moves the rate
// toward its newly computed target.
type Strategy int

const (
	// Conservative applies 50% of the computed delta per reconciliation.
	Conservative Strategy = iota
	// Balanced applies 75% of the computed delta per reconciliation.
	Balanced
	// Aggressive applies the full computed delta per reconciliation.
	Aggressive
)

func (s Strategy) factor() float64 {
	switch s {
	case Conservative:
		return 0.5
	case Aggressive:
		return 1.0
	default:
		return 0.75
	}
}

// LoadLevel classifies the composite load score.
type LoadLevel int

const (
	LoadNormal LoadLevel = iota
	LoadLow
	LoadHigh
	LoadCritical
)

func (l LoadLevel) String() string {
	switch l {
	case LoadLow:
		return "low"
	case LoadHigh:
		return "high"
	case LoadCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Load is a normalized (each field in [0,1]) snapshot of system load used
// to compute the composite score L.
type Load struct {
	CPU          float64
	Memory       float64
	Connections  float64
	Queue        float64
	Errors       float64
	ResponseTime float64
}

// score computes L = 0.30*cpu + 0.20*mem + 0.15*connections + 0.15*queue
// + 0.10*errors + 0.10*responseTime.
func (l Load) score() float64 {
	return 0.30*l.CPU + 0.20*l.Memory + 0.15*l.Connections + 0.15*l.Queue + 0.10*l.Errors + 0.10*l.ResponseTime
}

// Config configures a Controller.
type Config struct {
	// BaseRate is the initial rate in tokens/sec. Default: 100
	BaseRate float64
	// MinRate and MaxRate bound the reconciled rate.
	MinRate float64 // Default: BaseRate/10
	MaxRate float64 // Default: BaseRate*10

	// CooldownPeriod is the minimum interval between reconciliations.
	// Default: 10s
	CooldownPeriod time.Duration

	// ScaleUp and ScaleDown are the base multipliers applied by the rule
	// table. Default: ScaleUp=1.25, ScaleDown=0.75
	ScaleUp   float64
	ScaleDown float64

	// ScaleUpThreshold and ScaleDownThreshold are availability
	// thresholds (0-1) that gate scale-up/scale-down rules.
	// Default: 0.999 / 0.95
	ScaleUpThreshold   float64
	ScaleDownThreshold float64

	// CriticalLoad, HighLoad, LowLoad bound the composite load score L
	// into LoadLevel buckets. Default: 0.85 / 0.65 / 0.30
	CriticalLoad, HighLoad, LowLoad float64

	// Strategy controls smoothing. Default: Balanced
	Strategy Strategy
}

func (c Config) withDefaults() Config {
	if c.BaseRate <= 0 {
		c.BaseRate = 100
	}
	if c.MinRate <= 0 {
		c.MinRate = c.BaseRate / 10
	}
	if c.MaxRate <= 0 {
		c.MaxRate = c.BaseRate * 10
	}
	if c.CooldownPeriod <= 0 {
		c.CooldownPeriod = 10 * time.Second
	}
	if c.ScaleUp <= 0 {
		c.ScaleUp = 1.25
	}
	if c.ScaleDown <= 0 {
		c.ScaleDown = 0.75
	}
	if c.ScaleUpThreshold <= 0 {
		c.ScaleUpThreshold = 0.999
	}
	if c.ScaleDownThreshold <= 0 {
		c.ScaleDownThreshold = 0.95
	}
	if c.CriticalLoad <= 0 {
		c.CriticalLoad = 0.85
	}
	if c.HighLoad <= 0 {
		c.HighLoad = 0.65
	}
	if c.LowLoad <= 0 {
		c.LowLoad = 0.30
	}
	return c
}

func (c Config) loadLevel(l float64) LoadLevel {
	switch {
	case l >= c.CriticalLoad:
		return LoadCritical
	case l >= c.HighLoad:
		return LoadHigh
	case l <= c.LowLoad:
		return LoadLow
	default:
		return LoadNormal
	}
}

// multiplier applies the rule table in spec order; the first matching
// condition wins.
func (c Config) multiplier(h health.Status, availability float64, level LoadLevel) float64 {
	switch {
	case h == health.StatusUnhealthy || h == health.StatusOffline:
		return c.ScaleDown * 0.5
	case level == LoadCritical:
		return c.ScaleDown * 0.5
	case level == LoadHigh:
		return c.ScaleDown * 0.8
	case availability >= c.ScaleUpThreshold && level == LoadLow:
		return c.ScaleUp
	case availability < c.ScaleDownThreshold:
		return c.ScaleDown
	default:
		return 1.0
	}
}

// Controller reconciles a single named bucket's rate against health and
// load signals.
type Controller struct {
	name    string
	limiter *tokenbucket.Limiter
	config  Config

	mu           sync.Mutex
	currentRate  float64
	lastReconcile time.Time
}

// New creates a Controller and registers the named bucket at BaseRate.
func New(limiter *tokenbucket.Limiter, name string, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	limiter.Register(name, tokenbucket.Config{
		Rate:      cfg.BaseRate,
		MaxTokens: 2 * cfg.BaseRate,
	})
	return &Controller{
		name:        name,
		limiter:     limiter,
		config:      cfg,
		currentRate: cfg.BaseRate,
	}
}

// Rate returns the current reconciled rate.
func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRate
}

// Reconcile recomputes the rate from the current health, availability
// (0-1), and load snapshot, smooths the move per the configured
// Strategy, clamps to [MinRate, MaxRate], and re-configures the
// underlying bucket with maxTokens = 2*rate. It is a no-op if less than
// CooldownPeriod has elapsed since the last reconciliation, returning the
// unchanged current rate.
func (c *Controller) Reconcile(h health.Status, availability float64, load Load) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastReconcile.IsZero() && time.Since(c.lastReconcile) < c.config.CooldownPeriod {
		return c.currentRate
	}
	c.lastReconcile = time.Now()

	level := c.config.loadLevel(load.score())
	mult := c.config.multiplier(h, availability, level)
	target := c.currentRate * mult

	factor := c.config.Strategy.factor()
	newRate := c.currentRate + factor*(target-c.currentRate)

	if newRate < c.config.MinRate {
		newRate = c.config.MinRate
	}
	if newRate > c.config.MaxRate {
		newRate = c.config.MaxRate
	}
	newRate = math.Floor(newRate)

	c.currentRate = newRate
	c.limiter.Register(c.name, tokenbucket.Config{
		Rate:      newRate,
		MaxTokens: 2 * newRate,
	})
	return newRate
}
