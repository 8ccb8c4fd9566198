// Package bulkhead limits concurrent operations per service with an
// explicit FIFO waiter queue and a three-level admission state.
//
// It generalizes the teacher's channel-backed semaphore into a queue that
// tracks each waiter's deadline explicitly, so a caller whose wait expires
// is removed in O(1) without leaking a slot, and admission state (open,
// degraded, closed) is derived from the same active count a state-change
// callback observes on every transition.
package bulkhead
