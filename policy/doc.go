// Package policy composes bulkhead, circuit breaker, retry, and timeout
// into a single resilience-mediated call, with a fallback wrapping the
// whole chain.
//
// It keeps the teacher's executor's functional-options shape and
// inside-out wrapping technique (resilience/executor.go) but fixes the
// composition order to BULKHEAD -> CIRCUIT_BREAKER -> RETRY -> TIMEOUT ->
// (op), with FALLBACK wrapping everything. Rate limiting and admission
// sit a layer further out, at the orchestrator, and are not part of a
// Policy.
package policy
