// Package cascade detects cascading failures: it watches per-service
// consecutive-failure streaks, flags a dependency chain reaction when a
// CRITICAL service's already-struggling dependents are failing too,
// and periodically looks for statistically correlated failure patterns
// across services.
//
// Failure history bookkeeping follows the same mutex-guarded, lazily
// trimmed slice idiom as [slo.Tracker]; the pairwise correlation cache
// uses [internal/ttlcache.Cache] so a stale pair's entry expires on its
// own once neither endpoint has failed recently, the way the teacher's
// deleted JWKS cache expired unused keys.
package cascade
