package fabric

import (
	"context"

	"github.com/reliabilityfabric/fabric/bulkhead"
	"github.com/reliabilityfabric/fabric/fabricmetrics"
	"github.com/reliabilityfabric/fabric/health"
)

// collectMetricsInputs harvests the fabricmetrics.Exporter's raw counts
// from the registry, every registered service's rate limiter, bulkhead,
// and error-budget tracker, and the cascade detector's latest analysis.
func (f *Fabric) collectMetricsInputs(ctx context.Context) fabricmetrics.Inputs {
	var in fabricmetrics.Inputs

	for _, name := range f.registry.ServiceNames() {
		status, ok := f.registry.Health(name)
		if !ok {
			continue
		}
		in.ServicesTotal++
		switch status {
		case health.StatusHealthy:
			in.ServicesHealthy++
		case health.StatusDegraded:
			in.ServicesDegraded++
		default:
			in.ServicesUnhealthy++
		}
	}

	f.mu.RLock()
	services := make([]*service, 0, len(f.services))
	for _, svc := range f.services {
		services = append(services, svc)
	}
	f.mu.RUnlock()

	for _, svc := range services {
		if svc.rateLimiterEnabled {
			in.RateLimitersTotal++
			if bs, err := f.limiter.Status(svc.cfg.Name); err == nil {
				in.RateLimiterTotalRequests += bs.Total
				in.RateLimiterRejected += bs.Rejected
				if bs.Throttled {
					in.RateLimitersThrottled++
				}
			}
		}

		if svc.bulkhead != nil {
			in.BulkheadsTotal++
			if m := svc.bulkhead.Metrics(); m.State != bulkhead.Open {
				in.BulkheadsDegradedOrClosed++
			}
		}

		if svc.slo != nil {
			in.ErrorBudgetsTotal++
			if svc.slo.Snapshot().RemainingBudget <= 0 {
				in.ErrorBudgetsExhausted++
			}
		}

		if svc.latencyTracker != nil {
			in.LatencyBudgetsTotal++
			svc.mu.Lock()
			breached := svc.lastViolation.String() == "breach"
			svc.mu.Unlock()
			if breached {
				in.LatencyBudgetsBreached++
			}
		}

		for range svc.cfg.Dependencies {
			in.DependenciesTotal++
		}
	}

	in.DependenciesUnhealthy = f.countUnhealthyDependencies()
	in.CascadeRiskLevel = f.cascadeRiskLevel()
	return in
}

func (f *Fabric) countUnhealthyDependencies() int {
	count := 0
	for _, name := range f.registry.ServiceNames() {
		f.mu.RLock()
		svc, ok := f.services[name]
		f.mu.RUnlock()
		if !ok {
			continue
		}
		for _, e := range svc.cfg.Dependencies {
			if status, ok := f.registry.Health(e.Target); ok && status != health.StatusHealthy {
				count++
			}
		}
	}
	return count
}

// cascadeRiskLevel maps the highest predicted-failure probability from
// the cascade detector's latest analysis onto the fabric's four-level
// risk scale.
func (f *Fabric) cascadeRiskLevel() string {
	result := f.cascadeDet.Analyze()

	var maxProb float64
	for _, p := range result.Predictions {
		if p.Probability > maxProb {
			maxProb = p.Probability
		}
	}

	switch {
	case maxProb >= 0.75:
		return "critical"
	case maxProb >= 0.5:
		return "high"
	case maxProb >= 0.25:
		return "medium"
	default:
		return "low"
	}
}
