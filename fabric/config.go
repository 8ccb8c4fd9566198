package fabric

import (
	"context"
	"time"

	"github.com/reliabilityfabric/fabric/circuit"
	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/healthcheck"
	"github.com/reliabilityfabric/fabric/policy"
	"github.com/reliabilityfabric/fabric/registry"
	"github.com/reliabilityfabric/fabric/retry"
	"github.com/reliabilityfabric/fabric/timeout"
)

// Priority classifies a caller's Execute request for backpressure
// shedding and bulkhead-queue fairness decisions made upstream of the
// fabric.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Op is the operation Execute mediates. Its result is opaque to every
// layer of the chain except the caller.
type Op func(ctx context.Context) (any, error)

// ExecuteOptions adjusts one call's admission and healing behavior.
type ExecuteOptions struct {
	SkipRateLimit bool
	SkipBulkhead  bool
	SkipHealing   bool
	Priority      Priority
}

// HealthCheckConfig configures a service's periodic probe.
type HealthCheckConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	ProbeFn  func(ctx context.Context) health.Result
}

// RateLimiterConfig configures a service's token bucket.
type RateLimiterConfig struct {
	TokensPerSecond float64
	MaxTokens       float64
	MaxWait         time.Duration
	QueueEnabled    bool
	MaxQueueSize    int
}

// BulkheadConfig configures a service's concurrency cap.
type BulkheadConfig struct {
	MaxConcurrent        int
	MaxWait              time.Duration
	DegradationThreshold float64
}

// PolicyConfig configures a service's circuit breaker, retry, timeout,
// and fallback. Rate limiting and bulkheading are configured
// separately above; Policy never admits a circuit.WithBulkhead-style
// option because admission is the orchestrator's concern, not the
// resilience-policy chain's.
type PolicyConfig struct {
	CircuitBreaker *circuit.Config
	Retry          *retry.Config
	Timeout        *timeout.Config
	Fallback       policy.Fallback
}

// SLOConfig configures a service's error-budget tracker.
type SLOConfig struct {
	TargetAvailability     float64
	Window                 time.Duration
	AlertThreshold         float64
	BurnRateAlertThreshold float64
}

// LatencyBudgetConfig configures a service's latency-budget tracker.
// Target records the service's intended latency for status reporting;
// the tracker itself classifies samples against Warning/Critical/Breach.
type LatencyBudgetConfig struct {
	Target     float64
	Warning    float64
	Critical   float64
	Breach     float64
	WindowSize int
}

// ServiceConfig is the full registration profile for one service.
type ServiceConfig struct {
	Name         string
	Type         string
	Criticality  healthcheck.Criticality
	Dependencies []registry.Edge

	HealthCheck   *HealthCheckConfig
	RateLimiter   *RateLimiterConfig
	Bulkhead      *BulkheadConfig
	Policy        *PolicyConfig
	SLO           *SLOConfig
	LatencyBudget *LatencyBudgetConfig
}
