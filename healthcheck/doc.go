// Package healthcheck schedules periodic health probes per service and
// emits pass/fail and healthy/unhealthy transition events to subscribers.
//
// It builds on the teacher's [health.Checker] interface: each schedule
// runs its one Checker directly (a composite [health.Aggregator] can be
// supplied through its Checker method), adding the scheduling,
// criticality-based default intervals, and consecutive success/failure
// transition counters the teacher's aggregator does not have on its own. Concurrent manual probes of the same service are
// deduplicated with [singleflight.Group], the way a JWKS fetcher dedupes
// concurrent key refreshes.
package healthcheck
