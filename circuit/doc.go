// Package circuit implements the CLOSED/OPEN/HALF_OPEN circuit breaker
// state machine.
//
// It generalizes the teacher's circuit breaker, which closes on a single
// successful half-open probe, into one requiring SuccessThreshold
// consecutive half-open successes before returning to CLOSED -- any
// half-open failure still reopens immediately.
package circuit
