package fabric

import (
	"context"
	"time"

	"github.com/reliabilityfabric/fabric/fabriberr"
	"github.com/reliabilityfabric/fabric/observe"
	"github.com/reliabilityfabric/fabric/policy"
	"github.com/reliabilityfabric/fabric/slo"
)

// Execute mediates one call to name's operation through, in order:
// (1) the rate limiter, if configured and not skipped; (2) the
// bulkhead, if configured and not skipped; (3) the resilience policy
// (circuit breaker -> retry -> timeout -> op), if configured. Outcome
// is then recorded into the cascade detector, the error-budget
// tracker, and the latency-budget tracker, and self-healing is invoked
// on any terminal execution error.
//
// Admission errors (RATE_LIMIT_*, BULKHEAD_*) return immediately,
// never reach the resilience policy, and never feed cascade detection,
// error budgets, or self-healing -- they are intended shedding, per
// spec.md §7's propagation policy.
func (f *Fabric) Execute(ctx context.Context, name string, op Op, opts ExecuteOptions) (any, error) {
	f.mu.RLock()
	svc, ok := f.services[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fabriberr.New(name, "execute", fabriberr.KindUnknownService, nil)
	}

	if svc.rateLimiterEnabled && !opts.SkipRateLimit {
		if err := f.admitRateLimit(ctx, svc); err != nil {
			return nil, err
		}
	}

	wrapped := f.mw.Wrap(func(ctx context.Context, _ observe.ServiceMeta, _ any) (any, error) {
		return op(ctx)
	})
	mediated := func(ctx context.Context) (any, error) {
		if svc.policy != nil {
			return svc.policy.Execute(ctx, policy.Op(func(ctx context.Context) (any, error) {
				return wrapped(ctx, svc.meta, nil)
			}))
		}
		return wrapped(ctx, svc.meta, nil)
	}

	var result any
	var opErr error
	ran := false
	runMediated := func(ctx context.Context) error {
		ran = true
		r, e := mediated(ctx)
		result, opErr = r, e
		return e
	}

	start := time.Now()
	var admissionErr error
	if svc.bulkhead != nil && !opts.SkipBulkhead {
		admissionErr = svc.bulkhead.Execute(ctx, runMediated)
	} else {
		admissionErr = runMediated(ctx)
	}

	if !ran {
		// The bulkhead rejected admission; op never ran.
		return nil, admissionErr
	}

	f.recordOutcome(name, svc, time.Since(start), opErr, opts)
	return result, opErr
}

func (f *Fabric) admitRateLimit(ctx context.Context, svc *service) error {
	rl := svc.cfg.RateLimiter
	if rl.MaxWait <= 0 && !rl.QueueEnabled {
		ok, err := f.limiter.TryConsume(svc.cfg.Name, 1)
		if err != nil {
			return err
		}
		if !ok {
			return fabriberr.New(svc.cfg.Name, "execute", fabriberr.KindRateLimitExceeded, nil)
		}
		return nil
	}
	_, err := f.limiter.Consume(ctx, svc.cfg.Name, 1, rl.MaxWait)
	return err
}

// recordOutcome feeds a completed mediated call's result into the
// latency tracker, the error-budget tracker, the cascade detector, and
// (on a terminal error) self-healing.
func (f *Fabric) recordOutcome(name string, svc *service, elapsed time.Duration, opErr error, opts ExecuteOptions) {
	if svc.latencyTracker != nil {
		svc.latencyTracker.Record(float64(elapsed.Milliseconds()))
	}

	if svc.slo != nil {
		alerts := svc.slo.RecordRequest(opErr == nil)
		f.emitSLOAlerts(name, alerts)
	}

	if opErr != nil {
		// onCascadeEvent, subscribed at New, turns any returned Events
		// into fabric events; the return value itself is unneeded here.
		f.cascadeDet.RecordFailure(name, string(errKind(opErr)), opErr.Error())
	} else {
		f.cascadeDet.RecordRecovery(name)
	}

	if opErr != nil && !opts.SkipHealing && f.cfg.SelfHealing != nil {
		f.cfg.SelfHealing(name, opErr.Error())
	}
}

func (f *Fabric) emitSLOAlerts(name string, alerts []slo.Alert) {
	for _, a := range alerts {
		var kind EventKind
		switch a.Kind {
		case slo.AlertBudgetExhausted:
			kind = EventBudgetExhausted
		case slo.AlertBudgetLow:
			kind = EventBudgetLow
		case slo.AlertBurnRateHigh:
			kind = EventBurnRateHigh
		case slo.AlertAvailabilityDrop:
			kind = EventAvailabilityDrop
		default:
			continue
		}
		f.events.emit(Event{Kind: kind, Service: name, Message: a.Message})
	}
}

func errKind(err error) fabriberr.Kind {
	if k, ok := fabriberr.KindOf(err); ok {
		return k
	}
	return "EXECUTION_ERROR"
}
