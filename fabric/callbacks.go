package fabric

import (
	"github.com/reliabilityfabric/fabric/cascade"
	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/healthcheck"
	"github.com/reliabilityfabric/fabric/latency"
)

// onHealthEvent translates a healthcheck.Scheduler event into the
// fabric's own event kinds, propagates healthy/unhealthy transitions
// through the dependency graph, and re-emits a service_healthy or
// service_unhealthy event for every dependent the propagation changed.
func (f *Fabric) onHealthEvent(ev healthcheck.Event) {
	switch ev.Kind {
	case healthcheck.EventHealthCheckPass:
		f.events.emit(Event{Kind: EventHealthCheckPass, Service: ev.Service, Data: ev.Result})
	case healthcheck.EventHealthCheckFail:
		f.events.emit(Event{Kind: EventHealthCheckFail, Service: ev.Service, Data: ev.Result})
	case healthcheck.EventServiceHealthy:
		f.events.emit(Event{Kind: EventServiceHealthy, Service: ev.Service, Data: ev.Result})
	case healthcheck.EventServiceUnhealthy:
		f.events.emit(Event{Kind: EventServiceUnhealthy, Service: ev.Service, Data: ev.Result})
	default:
		return
	}

	if ev.Kind != healthcheck.EventServiceHealthy && ev.Kind != healthcheck.EventServiceUnhealthy {
		return
	}

	changed := f.registry.UpdateHealth(ev.Service, ev.Result.Status)
	f.reconcileAdaptive(ev.Service)
	for _, dep := range changed {
		status, ok := f.registry.Health(dep)
		if !ok {
			continue
		}
		kind := EventServiceHealthy
		if status != health.StatusHealthy {
			kind = EventServiceUnhealthy
		}
		f.events.emit(Event{Kind: kind, Service: dep, Data: status})
	}
}

// onCascadeEvent translates a cascade.Detector event into the fabric's
// own event kinds.
func (f *Fabric) onCascadeEvent(ev cascade.Event) {
	switch ev.Kind {
	case cascade.CascadeWarning:
		f.events.emit(Event{Kind: EventCascadeWarning, Service: ev.Service})
	case cascade.CascadeDetected:
		f.events.emit(Event{Kind: EventCascadeDetected, Service: ev.Service, Message: ev.Dependent, Data: ev.Dependent})
	}
}

// onLatencyEvent translates a latency.Tracker event into the fabric's
// own event kinds and records the latest classification for
// fabricmetrics' latency-budget-breached count.
func (f *Fabric) onLatencyEvent(name string, ev latency.Event) {
	f.mu.RLock()
	svc, ok := f.services[name]
	f.mu.RUnlock()
	if ok {
		svc.mu.Lock()
		svc.lastViolation = ev.Violation
		svc.mu.Unlock()
	}

	switch ev.Kind {
	case latency.EventEnteredViolation:
		f.events.emit(Event{Kind: EventLatencyViolation, Service: name, Data: ev.Violation})
	case latency.EventRecovered:
		f.events.emit(Event{Kind: EventLatencyRecovery, Service: name, Data: ev.TimeInViolation})
	}
}

// reconcileAdaptive reconciles name's adaptive rate-limit controller
// (if one is enabled) against its current health, availability, and
// the last sampled backpressure reading.
func (f *Fabric) reconcileAdaptive(name string) {
	f.mu.RLock()
	ctrl, ok := f.adaptive[name]
	svc := f.services[name]
	f.mu.RUnlock()
	if !ok {
		return
	}

	status, _ := f.registry.Health(name)
	availability := 1.0
	if svc != nil && svc.slo != nil {
		availability = svc.slo.Snapshot().CurrentAvailability
	}

	load := adaptiveLoadFromPressure(f.lastSample())
	ctrl.Reconcile(status, availability, load)
}
