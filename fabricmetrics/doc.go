// Package fabricmetrics periodically harvests a snapshot of the whole
// fabric's state -- services, rate limiters, bulkheads, error budgets,
// latency budgets, dependencies, cascade risk -- into a weighted health
// score and exports it as JSON, Prometheus text exposition, or a human
// summary.
//
// It is distinct from [observe]'s per-execution OpenTelemetry metrics:
// this package produces the periodic aggregate snapshot the spec's
// orchestrator exposes at a metrics endpoint, not per-call telemetry.
// The Prometheus family encoding builds [dto.MetricFamily] values
// directly (each sample stamped with its own collection timestamp) and
// renders them with [expfmt.MetricFamilyToText] from
// [github.com/prometheus/common], independent of observe's OTel
// Prometheus bridge.
// Concurrent snapshot collection is deduped with [singleflight.Group],
// the same pattern healthcheck uses for concurrent probes.
package fabricmetrics
