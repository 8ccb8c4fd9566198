// Package tokenbucket implements a per-service token-bucket rate limiter
// with lazy+periodic refill and FIFO-queued waiters.
//
// It generalizes the teacher's single-limiter design into a named-bucket
// registry: [Limiter] owns many [Bucket] values, each refilled lazily on
// every operation (elapsed·rate tokens, clamped to maxTokens) and woken by
// a shared background ticker so queued [Consume] callers observe new
// tokens promptly even when nobody else touches the bucket.
//
// try_consume is the non-blocking admission check. consume additionally
// queues the caller, FIFO, until tokens arrive or its deadline passes, at
// which point it fails with [fabriberr.KindRateLimitTimeout]. A queue at
// capacity fails fast with [fabriberr.KindRateLimitQueueFull].
package tokenbucket
