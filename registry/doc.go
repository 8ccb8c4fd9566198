// Package registry is the fabric's service registry and dependency
// graph: it tracks registrations, incidents, and health transitions,
// computes a per-service reliability score, and propagates health
// changes across typed dependency edges.
//
// The registration/incident bookkeeping borrows the teacher's
// now-retired secret-registry factory-registration idiom (lookup by
// name under a single mutex, ordered iteration via a side slice).
// Health is stored as plain [health.Status] values set through
// UpdateHealth; the registry runs no checkers itself. The dependency graph, reliability
// score, and breadth-first propagation are new: there is no teacher
// analogue for cross-service blast-radius analysis.
package registry
