// Package slo tracks a per-service error budget against a target
// availability over a rolling time window, estimating burn rate and
// raising alerts before the budget is exhausted.
//
// The sample bookkeeping is grounded on the teacher's mutex-guarded,
// lazily-trimmed slice idiom (the same shape as [health.MemoryChecker]'s
// threshold checks, generalized from a single runtime snapshot to a
// rolling time window) rather than [internal/ring.Buffer]: a budget
// window trims by elapsed time, not by a fixed sample count, so a
// capacity-bounded ring is the wrong shape here.
package slo
