// Package adaptivelimit wraps a [tokenbucket.Limiter] bucket and
// periodically recomputes its rate from service health and a composite
// load score, the way the teacher's rate limiter holds a fixed rate but
// generalized to move with observed conditions.
//
// Every cooldown period, [Controller.Reconcile] folds health and load
// into a target-rate multiplier via a fixed rule table, smooths the move
// toward that target according to the configured [Strategy], clamps to
// [minRate, maxRate], and reconfigures the underlying bucket with
// maxTokens = 2*rate.
package adaptivelimit
