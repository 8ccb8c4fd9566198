// Package fabric is the reliability fabric's orchestrator: the single
// entry point that wires rate limiting, bulkheading, resilience policy,
// health checking, the dependency registry, error budgets, latency
// budgets, cascade detection, and metrics export into one process-wide
// instance.
//
// Its composition order for a mediated call follows the teacher's
// executor (resilience/executor.go): build the chain from the
// innermost operation outward, record outcome on the way back out.
// Here the chain is RATE_LIMIT -> BULKHEAD -> POLICY (circuit -> retry
// -> timeout -> op) -> outcome recording, with rate limiting and
// bulkheading deliberately kept out of Policy itself (see
// [github.com/reliabilityfabric/fabric/policy]'s doc comment) so that
// admission decisions and execution-resilience decisions stay
// independently testable.
//
// fabric.New stands up one shared [observe.Observer] for the whole
// process using observe/exporters' factories verbatim, the same way
// the teacher's tool runtime did for per-execution telemetry -- here
// generalized so every mediated Execute call is traced, metered, and
// logged, and fabricmetrics.Exporter separately harvests the periodic
// aggregate snapshot.
package fabric
