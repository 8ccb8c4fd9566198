// Package backpressure periodically samples system load -- memory
// pressure, an event-loop-lag CPU proxy, pending task count, error
// rate, and cache hit rate -- into a single pressure score, classifies
// it into a load level, and decides whether and how to shed load.
//
// Memory-fraction sampling is adapted from [health.MemoryChecker]'s
// runtime.MemStats reading, generalized from a one-shot threshold check
// into a periodic sample feeding a weighted score. Proportional
// shedding draws from the same injectable [internal/prng.Source] the
// retry package uses for jitter, so both forms of intentional
// randomness in the fabric share one seed in tests.
package backpressure
