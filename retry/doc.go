// Package retry implements exponential/linear/constant backoff retry.
//
// It generalizes the teacher's retry handler, whose jitter added up to
// 25% on top of the computed delay using an inline, non-injectable
// math/rand/v2 source, into one whose jitter multiplies the delay by a
// uniform draw in [0.5, 1.0] using an injectable [prng.Source] -- the
// same source type backpressure's proportional shedding draws from, so a
// seeded fabric can reproduce both in tests.
package retry
