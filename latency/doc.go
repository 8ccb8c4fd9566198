// Package latency tracks a fixed-size ring of recent latencies per
// service, classifies the current sample against configured violation
// thresholds, and reports whether the trend over recent samples is
// stable, degrading, or improving.
//
// It reuses [internal/ring.Buffer] and [internal/ring.Summarize] for
// the ring and its percentile/stdev statistics -- the same mechanism
// the resilience policy chain already uses for its own latency
// metrics -- rather than rolling a second ring implementation.
package latency
