package fabric

import (
	"context"

	"github.com/reliabilityfabric/fabric/bulkhead"
	"github.com/reliabilityfabric/fabric/fabricmetrics"
	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/healthcheck"
	"github.com/reliabilityfabric/fabric/latency"
	"github.com/reliabilityfabric/fabric/slo"
)

// Status is a point-in-time view of one registered service.
type Status struct {
	Name             string
	Health           health.Status
	ReliabilityScore float64
	RateLimiter      *bulkheadOrBucketStatus
	Bulkhead         *bulkhead.Metrics
	ErrorBudget      *slo.Snapshot
	LatencyViolation latency.Violation
}

// bulkheadOrBucketStatus mirrors tokenbucket.Status without importing it
// into this file's exported surface twice; kept as its own name since
// Status embeds both a rate limiter and a bulkhead reading.
type bulkheadOrBucketStatus struct {
	Tokens    float64
	MaxTokens float64
	Queued    int
	Throttled bool
}

// Summary is a system-wide rollup, the same shape fabricmetrics scores.
type Summary struct {
	Snapshot fabricmetrics.Snapshot
}

// Subscribe registers l for kind (or every kind, via EventAll) and
// returns an unsubscribe function.
func (f *Fabric) Subscribe(kind EventKind, l Listener) func() {
	return f.events.subscribe(kind, l)
}

// GetServiceStatus reports name's current health, reliability score,
// and per-mechanism readings. ok is false for an unregistered service.
func (f *Fabric) GetServiceStatus(name string) (Status, bool) {
	f.mu.RLock()
	svc, ok := f.services[name]
	f.mu.RUnlock()
	if !ok {
		return Status{}, false
	}

	st := Status{Name: name}
	st.Health, _ = f.registry.Health(name)
	st.ReliabilityScore, _ = f.registry.ReliabilityScore(name)

	if svc.rateLimiterEnabled {
		if bs, err := f.limiter.Status(name); err == nil {
			st.RateLimiter = &bulkheadOrBucketStatus{
				Tokens:    bs.Tokens,
				MaxTokens: bs.MaxTokens,
				Queued:    bs.Queued,
				Throttled: bs.Throttled,
			}
		}
	}

	if svc.bulkhead != nil {
		m := svc.bulkhead.Metrics()
		st.Bulkhead = &m
	}

	if svc.slo != nil {
		snap := svc.slo.Snapshot()
		st.ErrorBudget = &snap
	}

	svc.mu.Lock()
	st.LatencyViolation = svc.lastViolation
	svc.mu.Unlock()

	return st, true
}

// GetSystemSummary collects a fresh metrics snapshot and returns it.
func (f *Fabric) GetSystemSummary(ctx context.Context) Summary {
	return Summary{Snapshot: f.metricsExp.Collect(ctx)}
}

// ExportMetrics renders the most recent system summary in format.
func (f *Fabric) ExportMetrics(ctx context.Context, format fabricmetrics.Format) (string, error) {
	return f.metricsExp.Export(ctx, format)
}

// RecordProbeResult lets an external health probe (one not wired
// through a registered HealthCheckConfig) report an out-of-band result
// for name, propagating the same registry/dependent-notification and
// adaptive-reconciliation path a scheduled probe would.
func (f *Fabric) RecordProbeResult(name string, result health.Result) {
	kind := healthcheck.EventHealthCheckPass
	if result.Status != health.StatusHealthy {
		kind = healthcheck.EventHealthCheckFail
	}
	f.onHealthEvent(healthcheck.Event{Kind: kind, Service: name, Result: result})

	transitionKind := healthcheck.EventServiceHealthy
	if result.Status != health.StatusHealthy {
		transitionKind = healthcheck.EventServiceUnhealthy
	}
	f.onHealthEvent(healthcheck.Event{Kind: transitionKind, Service: name, Result: result})
}
