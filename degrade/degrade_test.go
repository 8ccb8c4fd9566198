package degrade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reliabilityfabric/fabric/degrade"
	"github.com/reliabilityfabric/fabric/health"
)

var errBoom = errors.New("boom")

func TestLadder_StepsDownAfterFailThreshold(t *testing.T) {
	l := degrade.New("svc", degrade.Config{
		FailThreshold: 2,
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full:    func(ctx context.Context) (any, error) { return nil, errBoom },
			degrade.Partial: func(ctx context.Context) (any, error) { return "fallback", nil },
		},
	})

	l.Execute(context.Background())
	l.Execute(context.Background())

	if got := l.Level(); got != degrade.Partial {
		t.Fatalf("Level() = %v, want PARTIAL", got)
	}
}

func TestLadder_NeverSkipsARung(t *testing.T) {
	l := degrade.New("svc", degrade.Config{
		FailThreshold: 1,
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full:      func(ctx context.Context) (any, error) { return nil, errBoom },
			degrade.Partial:   func(ctx context.Context) (any, error) { return nil, errBoom },
			degrade.Minimal:   func(ctx context.Context) (any, error) { return nil, errBoom },
			degrade.Emergency: func(ctx context.Context) (any, error) { return "static", nil },
		},
	})

	var seen []degrade.Level
	for i := 0; i < 4; i++ {
		seen = append(seen, l.Level())
		l.Execute(context.Background())
	}

	want := []degrade.Level{degrade.Full, degrade.Partial, degrade.Minimal, degrade.Emergency}
	for i, lvl := range want {
		if seen[i] != lvl {
			t.Fatalf("step %d: Level() = %v, want %v (full sequence %v)", i, seen[i], lvl, seen)
		}
	}
}

func TestLadder_RecoversAfterRecoverThreshold(t *testing.T) {
	healthy := true
	l := degrade.New("svc", degrade.Config{
		FailThreshold:    1,
		RecoverThreshold: 2,
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full: func(ctx context.Context) (any, error) {
				if healthy {
					return "ok", nil
				}
				return nil, errBoom
			},
			degrade.Partial: func(ctx context.Context) (any, error) { return "fallback", nil },
		},
	})

	healthy = false
	l.Execute(context.Background())
	if l.Level() != degrade.Partial {
		t.Fatalf("expected PARTIAL after first failure, got %v", l.Level())
	}

	healthy = true
	l.Execute(context.Background())
	if l.Level() != degrade.Partial {
		t.Fatalf("expected to stay at PARTIAL after 1 of 2 successes, got %v", l.Level())
	}
	l.Execute(context.Background())
	if l.Level() != degrade.Full {
		t.Fatalf("expected FULL after RecoverThreshold successes, got %v", l.Level())
	}
}

func TestLevel_HealthProjection(t *testing.T) {
	cases := map[degrade.Level]health.Status{
		degrade.Full:      health.StatusHealthy,
		degrade.Partial:   health.StatusDegraded,
		degrade.Minimal:   health.StatusUnhealthy,
		degrade.Emergency: health.StatusOffline,
	}
	for level, want := range cases {
		if got := level.Health(); got != want {
			t.Errorf("%v.Health() = %v, want %v", level, got, want)
		}
	}
}

func TestLadder_HealthOverride(t *testing.T) {
	l := degrade.New("svc", degrade.Config{
		HealthOverride: func(degrade.Level) health.Status { return health.StatusDegraded },
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full: func(ctx context.Context) (any, error) { return "ok", nil },
		},
	})
	if got := l.Health(); got != health.StatusDegraded {
		t.Fatalf("Health() = %v, want overridden DEGRADED", got)
	}
}

func TestLadder_AttemptTimeout(t *testing.T) {
	l := degrade.New("svc", degrade.Config{
		AttemptTimeout: 5 * time.Millisecond,
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full: func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	})

	_, err := l.Execute(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestLadder_AvailabilityTracksOutcomes(t *testing.T) {
	l := degrade.New("svc", degrade.Config{
		FailThreshold: 100,
		Stages: map[degrade.Level]degrade.Stage{
			degrade.Full: func(ctx context.Context) (any, error) { return "ok", nil },
		},
	})
	l.Execute(context.Background())
	l.Execute(context.Background())
	if got := l.Availability(); got != 1 {
		t.Fatalf("Availability() = %v, want 1", got)
	}
}
