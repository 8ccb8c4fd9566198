package fabric

import (
	"net/http"

	"github.com/reliabilityfabric/fabric/health"
)

// HealthMux builds an http.ServeMux exposing /healthz (liveness),
// /readyz (readiness), and /health (detailed JSON) over every
// registered service that was configured with a HealthCheckConfig,
// aggregated via health.Aggregator the same way the teacher's own
// health package composes checkers into one readiness surface.
func (f *Fabric) HealthMux() *http.ServeMux {
	agg := health.NewAggregator()
	agg.Register("process_memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))

	f.mu.RLock()
	for name, svc := range f.services {
		if svc.cfg.HealthCheck == nil || svc.cfg.HealthCheck.ProbeFn == nil {
			continue
		}
		agg.Register(name, health.NewCheckerFunc(name, svc.cfg.HealthCheck.ProbeFn))
	}
	f.mu.RUnlock()

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	return mux
}
