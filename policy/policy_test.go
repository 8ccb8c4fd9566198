package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reliabilityfabric/fabric/bulkhead"
	"github.com/reliabilityfabric/fabric/circuit"
	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/policy"
	"github.com/reliabilityfabric/fabric/retry"
	"github.com/reliabilityfabric/fabric/timeout"
)

var errBoom = errors.New("boom")

func TestPolicy_NoPatternsPassesThrough(t *testing.T) {
	p := policy.New("svc")
	result, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("got (%v, %v), want (ok, nil)", result, err)
	}
}

func TestPolicy_RetryThenSucceed(t *testing.T) {
	r := retry.New("svc", retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond})
	p := policy.New("svc", policy.WithRetry(r))

	attempts := 0
	result, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 2 {
			return nil, errBoom
		}
		return "done", nil
	})

	if err != nil || result != "done" {
		t.Fatalf("got (%v, %v), want (done, nil)", result, err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestPolicy_FallbackOnTerminalError(t *testing.T) {
	cb := circuit.New("svc", circuit.Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	p := policy.New("svc",
		policy.WithCircuitBreaker(cb),
		policy.WithFallback(func(ctx context.Context, cause error) (any, error) {
			return "fallback-value", nil
		}),
	)

	// First call opens the circuit.
	p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errBoom
	})

	// Second call is rejected by the open circuit; fallback should catch it.
	result, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "unreachable", nil
	})
	if err != nil || result != "fallback-value" {
		t.Fatalf("got (%v, %v), want (fallback-value, nil)", result, err)
	}
}

func TestPolicy_FallbackFailureSupersedesOriginal(t *testing.T) {
	fallbackErr := errors.New("fallback also failed")
	p := policy.New("svc",
		policy.WithFallback(func(ctx context.Context, cause error) (any, error) {
			return nil, fallbackErr
		}),
	)

	_, err := p.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errBoom
	})

	if !errors.Is(err, fabriberr.ErrFallbackFailed) {
		t.Fatalf("expected FALLBACK_FAILED, got %v", err)
	}
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("expected wrapped fallback cause, got %v", err)
	}
}

func TestPolicy_BulkheadOuterMostReleasesOnFailure(t *testing.T) {
	b := bulkhead.New("svc", bulkhead.Config{MaxConcurrent: 1})
	to := timeout.New("svc", timeout.Config{Duration: 5 * time.Millisecond})
	p := policy.New("svc", policy.WithBulkhead(b), policy.WithTimeout(to))

	for i := 0; i < 3; i++ {
		p.Execute(context.Background(), func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	}

	m := b.Metrics()
	if m.Active != 0 {
		t.Fatalf("expected bulkhead slot released after every call, got active=%d", m.Active)
	}
}

func TestPolicy_MetricsTrackTotals(t *testing.T) {
	p := policy.New("svc")
	p.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
	p.Execute(context.Background(), func(ctx context.Context) (any, error) { return nil, errBoom })

	m := p.Metrics()
	if m.Total != 2 || m.Success != 1 || m.Failure != 1 {
		t.Fatalf("got Metrics{Total:%d Success:%d Failure:%d}, want 2/1/1", m.Total, m.Success, m.Failure)
	}
}
