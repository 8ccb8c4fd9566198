package fabric_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reliabilityfabric/fabric/fabric"
	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/healthcheck"
	"github.com/reliabilityfabric/fabric/registry"
)

func unhealthyResult() health.Result {
	return health.Unhealthy("probe failed", errors.New("connection refused"))
}

func newTestFabric(t *testing.T) *fabric.Fabric {
	t.Helper()
	f, err := fabric.New(context.Background(), fabric.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { f.Close(context.Background()) })
	return f
}

func TestRegisterService_IsIdempotent(t *testing.T) {
	f := newTestFabric(t)

	cfg := fabric.ServiceConfig{Name: "orders", Criticality: healthcheck.High}
	if err := f.RegisterService(cfg); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	if err := f.RegisterService(cfg); err != nil {
		t.Fatalf("RegisterService (re-register): %v", err)
	}

	if _, ok := f.GetServiceStatus("orders"); !ok {
		t.Fatal("expected orders to be registered")
	}
}

func TestRegisterService_RequiresName(t *testing.T) {
	f := newTestFabric(t)
	if err := f.RegisterService(fabric.ServiceConfig{}); err == nil {
		t.Fatal("expected an error for an unnamed service")
	}
}

func TestUnregisterService_IsNoOpForUnknownService(t *testing.T) {
	f := newTestFabric(t)
	f.UnregisterService("does-not-exist")
}

func TestExecute_UnknownServiceReturnsBoundaryError(t *testing.T) {
	f := newTestFabric(t)
	_, err := f.Execute(context.Background(), "ghost", func(ctx context.Context) (any, error) {
		return "ok", nil
	}, fabric.ExecuteOptions{})

	if kind, ok := fabriberr.KindOf(err); !ok || kind != fabriberr.KindUnknownService {
		t.Fatalf("expected KindUnknownService, got %v", err)
	}
}

func TestExecute_SucceedsWithNoMechanismsConfigured(t *testing.T) {
	f := newTestFabric(t)
	if err := f.RegisterService(fabric.ServiceConfig{Name: "bare"}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	result, err := f.Execute(context.Background(), "bare", func(ctx context.Context) (any, error) {
		return "done", nil
	}, fabric.ExecuteOptions{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "done" {
		t.Fatalf("expected %q, got %v", "done", result)
	}
}

func TestExecute_RateLimitExceededNeverRunsOp(t *testing.T) {
	f := newTestFabric(t)
	err := f.RegisterService(fabric.ServiceConfig{
		Name: "throttled",
		RateLimiter: &fabric.RateLimiterConfig{
			TokensPerSecond: 1,
			MaxTokens:       1,
		},
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	ran := 0
	op := func(ctx context.Context) (any, error) {
		ran++
		return nil, nil
	}

	// First call consumes the single available token.
	if _, err := f.Execute(context.Background(), "throttled", op, fabric.ExecuteOptions{}); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	_, err = f.Execute(context.Background(), "throttled", op, fabric.ExecuteOptions{})
	if kind, ok := fabriberr.KindOf(err); !ok || kind != fabriberr.KindRateLimitExceeded {
		t.Fatalf("expected KindRateLimitExceeded, got %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected op to run exactly once, ran %d times", ran)
	}
}

func TestExecute_SkipRateLimitBypassesAdmission(t *testing.T) {
	f := newTestFabric(t)
	err := f.RegisterService(fabric.ServiceConfig{
		Name: "throttled",
		RateLimiter: &fabric.RateLimiterConfig{
			TokensPerSecond: 1,
			MaxTokens:       1,
		},
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	op := func(ctx context.Context) (any, error) { return nil, nil }
	for i := 0; i < 3; i++ {
		if _, err := f.Execute(context.Background(), "throttled", op, fabric.ExecuteOptions{SkipRateLimit: true}); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
}

func TestExecute_ExecutionErrorTriggersSelfHealing(t *testing.T) {
	var healed string
	f, err := fabric.New(context.Background(), fabric.Config{
		SelfHealing: func(service, reason string) { healed = service },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close(context.Background())

	if err := f.RegisterService(fabric.ServiceConfig{Name: "flaky"}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	boom := errors.New("boom")
	_, execErr := f.Execute(context.Background(), "flaky", func(ctx context.Context) (any, error) {
		return nil, boom
	}, fabric.ExecuteOptions{})
	if !errors.Is(execErr, boom) {
		t.Fatalf("expected boom, got %v", execErr)
	}
	if healed != "flaky" {
		t.Fatalf("expected self-healing to fire for flaky, got %q", healed)
	}
}

func TestExecute_AdmissionErrorNeverTriggersSelfHealing(t *testing.T) {
	var healed bool
	f, err := fabric.New(context.Background(), fabric.Config{
		SelfHealing: func(service, reason string) { healed = true },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer f.Close(context.Background())

	err = f.RegisterService(fabric.ServiceConfig{
		Name: "capped",
		RateLimiter: &fabric.RateLimiterConfig{
			TokensPerSecond: 1,
			MaxTokens:       1,
		},
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	op := func(ctx context.Context) (any, error) { return nil, nil }
	f.Execute(context.Background(), "capped", op, fabric.ExecuteOptions{})
	f.Execute(context.Background(), "capped", op, fabric.ExecuteOptions{})

	if healed {
		t.Fatal("expected self-healing not to fire for an admission error")
	}
}

func TestSubscribe_ReceivesServiceUnhealthyOnProbeFailure(t *testing.T) {
	f := newTestFabric(t)
	if err := f.RegisterService(fabric.ServiceConfig{Name: "db", Criticality: healthcheck.Critical}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	events := make(chan fabric.Event, 4)
	unsub := f.Subscribe(fabric.EventServiceUnhealthy, func(ev fabric.Event) { events <- ev })
	defer unsub()

	f.RecordProbeResult("db", unhealthyResult())

	select {
	case ev := <-events:
		if ev.Service != "db" {
			t.Fatalf("expected event for db, got %q", ev.Service)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for service_unhealthy event")
	}
}

func TestUpdateHealth_PropagatesToRequiredDependent(t *testing.T) {
	f := newTestFabric(t)
	if err := f.RegisterService(fabric.ServiceConfig{Name: "db", Criticality: healthcheck.Critical}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	err := f.RegisterService(fabric.ServiceConfig{
		Name: "api",
		Dependencies: []registry.Edge{
			{Target: "db", Type: registry.Required},
		},
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	events := make(chan fabric.Event, 4)
	unsub := f.Subscribe(fabric.EventServiceUnhealthy, func(ev fabric.Event) { events <- ev })
	defer unsub()

	f.RecordProbeResult("db", unhealthyResult())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			seen[ev.Service] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for propagated events, saw %v", seen)
		}
	}
	if !seen["db"] || !seen["api"] {
		t.Fatalf("expected both db and api unhealthy, saw %v", seen)
	}
}

func TestHealthMux_ServesLivenessAndReadiness(t *testing.T) {
	f := newTestFabric(t)
	err := f.RegisterService(fabric.ServiceConfig{
		Name: "svc",
		HealthCheck: &fabric.HealthCheckConfig{
			ProbeFn: func(ctx context.Context) health.Result { return health.Healthy("ok") },
		},
	})
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	mux := f.HealthMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/readyz: expected 200, got %d", rec.Code)
	}
}

func TestGetSystemSummary_ReflectsRegisteredServices(t *testing.T) {
	f := newTestFabric(t)
	if err := f.RegisterService(fabric.ServiceConfig{Name: "svc"}); err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	summary := f.GetSystemSummary(context.Background())
	if summary.Snapshot.Inputs.ServicesTotal != 1 {
		t.Fatalf("expected 1 registered service, got %d", summary.Snapshot.Inputs.ServicesTotal)
	}
}
