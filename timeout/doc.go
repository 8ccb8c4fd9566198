// Package timeout wraps an operation with a deadline.
//
// It keeps the teacher's timeout wrapper almost verbatim: op runs in its
// own goroutine racing ctx.Done(), and the derived context is passed to
// op so cancellation propagates into whatever op is doing -- the
// cooperative cancellation contract every fabric component relies on.
// Execute returns as soon as the deadline fires; op's goroutine is left
// running until it observes ctx.Done() itself, so op must check ctx.
package timeout
