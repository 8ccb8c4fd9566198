package fabriberr

import (
	"errors"
	"fmt"
)

// Kind identifies the boundary error kinds named in the fabric's external
// interface. Kind values are comparable and are also registered as
// errors.Is-compatible sentinels below (e.g. ErrRateLimitExceeded).
type Kind string

// Boundary error kinds.
const (
	KindRateLimitExceeded  Kind = "RATE_LIMIT_EXCEEDED"
	KindRateLimitTimeout   Kind = "RATE_LIMIT_TIMEOUT"
	KindRateLimitQueueFull Kind = "RATE_LIMIT_QUEUE_FULL"
	KindBulkheadFull       Kind = "BULKHEAD_FULL"
	KindBulkheadWaitTime   Kind = "BULKHEAD_WAIT_TIMEOUT"
	KindCircuitOpen        Kind = "CIRCUIT_OPEN"
	KindTimeout            Kind = "TIMEOUT"
	KindRetryExhausted     Kind = "RETRY_EXHAUSTED"
	KindFallbackFailed     Kind = "FALLBACK_FAILED"
	KindCancelled          Kind = "CANCELLED"
	KindShutdown           Kind = "SHUTDOWN"
	KindUnknownService     Kind = "UNKNOWN_SERVICE"
)

// Kind-indexed sentinels so callers can errors.Is(err, fabriberr.ErrCircuitOpen)
// without constructing an *Error themselves.
var (
	ErrRateLimitExceeded  = errors.New(string(KindRateLimitExceeded))
	ErrRateLimitTimeout   = errors.New(string(KindRateLimitTimeout))
	ErrRateLimitQueueFull = errors.New(string(KindRateLimitQueueFull))
	ErrBulkheadFull       = errors.New(string(KindBulkheadFull))
	ErrBulkheadWaitTime   = errors.New(string(KindBulkheadWaitTime))
	ErrCircuitOpen        = errors.New(string(KindCircuitOpen))
	ErrTimeout            = errors.New(string(KindTimeout))
	ErrRetryExhausted     = errors.New(string(KindRetryExhausted))
	ErrFallbackFailed     = errors.New(string(KindFallbackFailed))
	ErrCancelled          = errors.New(string(KindCancelled))
	ErrShutdown           = errors.New(string(KindShutdown))
	ErrUnknownService     = errors.New(string(KindUnknownService))
)

var sentinelByKind = map[Kind]error{
	KindRateLimitExceeded:  ErrRateLimitExceeded,
	KindRateLimitTimeout:   ErrRateLimitTimeout,
	KindRateLimitQueueFull: ErrRateLimitQueueFull,
	KindBulkheadFull:       ErrBulkheadFull,
	KindBulkheadWaitTime:   ErrBulkheadWaitTime,
	KindCircuitOpen:        ErrCircuitOpen,
	KindTimeout:            ErrTimeout,
	KindRetryExhausted:     ErrRetryExhausted,
	KindFallbackFailed:     ErrFallbackFailed,
	KindCancelled:          ErrCancelled,
	KindShutdown:           ErrShutdown,
	KindUnknownService:     ErrUnknownService,
}

// Error is the typed boundary error returned at the fabric's public edges.
type Error struct {
	// Service is the name of the service the call was scoped to.
	Service string
	// Kind is the stable error kind (see the Kind* constants).
	Kind Kind
	// Op names the operation that failed (e.g. "execute", "try_consume").
	Op string
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fabric: %s: %s[%s]: %v", e.Service, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("fabric: %s: %s[%s]", e.Service, e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind sentinel or another *Error of the
// same Kind, so errors.Is(err, fabriberr.ErrCircuitOpen) works regardless
// of Service/Op, and so does comparing two *Error values directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return sentinelByKind[e.Kind] == target
}

// New constructs a boundary Error.
func New(service, op string, kind Kind, cause error) *Error {
	return &Error{Service: service, Op: op, Kind: kind, Err: cause}
}

// KindOf returns the Kind carried by err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
