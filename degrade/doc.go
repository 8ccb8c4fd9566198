// Package degrade implements graceful degradation: a per-service ladder
// of fallback levels that steps down under sustained failure and steps
// back up under sustained recovery, never skipping a rung.
//
// It has no direct teacher analogue -- the teacher repo has no
// degradation ladder of its own -- so the level/health state machine is
// grounded on the [health.Status] enum and the consecutive-count
// transition idiom already used by the healthcheck scheduler and the
// circuit breaker's half-open success counting. Each attempt is wrapped
// with the same [timeout.Timeout] the rest of the fabric uses.
package degrade
