package registry

import (
	"sync"
	"time"

	"github.com/reliabilityfabric/fabric/health"
	"github.com/reliabilityfabric/fabric/healthcheck"
)

// Incident is a recorded health transition for a service.
type Incident struct {
	Time        time.Time
	Description string
	Severity    string
}

// Registration describes a service's static profile for scoring and
// impact analysis.
type Registration struct {
	Criticality healthcheck.Criticality

	// MinAvailability is the availability ratio considered fully
	// reliable (score component saturates at 1 at or above this).
	MinAvailability float64

	// MaxResponseTime is the response time, in the same unit as
	// RecordResponseTime's argument, considered fully reliable.
	MaxResponseTime float64

	// Dependencies are this service's typed, weighted edges onto the
	// services it depends on.
	Dependencies []Edge
}

func (r Registration) withDefaults() Registration {
	if r.MinAvailability <= 0 {
		r.MinAvailability = 0.99
	}
	if r.MaxResponseTime <= 0 {
		r.MaxResponseTime = 1000
	}
	return r
}

type serviceRecord struct {
	reg Registration

	health          health.Status
	lastCheckTime   time.Time
	incidents       []Incident
	availability    float64
	avgResponseTime float64
	degradationRate float64
}

// Registry stores service registrations, incidents, and health state,
// and propagates health changes across the dependency graph.
type Registry struct {
	mu       sync.Mutex
	services map[string]*serviceRecord
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{services: make(map[string]*serviceRecord)}
}

// Register adds or replaces a service's registration. A newly
// registered service starts HEALTHY with 100% availability.
func (r *Registry) Register(name string, reg Registration) {
	reg = reg.withDefaults()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[name]; !exists {
		r.order = append(r.order, name)
	}
	r.services[name] = &serviceRecord{reg: reg, health: health.StatusHealthy, availability: 1}
}

// Unregister removes a service and its edges from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ServiceNames returns registered service names in registration order.
func (r *Registry) ServiceNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Health returns a service's current health and whether it is registered.
func (r *Registry) Health(name string) (health.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.services[name]
	if !ok {
		return health.StatusOffline, false
	}
	return rec.health, true
}

// Incidents returns a service's recorded incidents.
func (r *Registry) Incidents(name string) []Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.services[name]
	if !ok {
		return nil
	}
	out := make([]Incident, len(rec.incidents))
	copy(out, rec.incidents)
	return out
}

// RecordAvailability updates a service's rolling availability ratio,
// used by the reliability score.
func (r *Registry) RecordAvailability(name string, availability float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.services[name]; ok {
		rec.availability = availability
	}
}

// RecordResponseTime updates a service's rolling average response time,
// used by the reliability score.
func (r *Registry) RecordResponseTime(name string, avg float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.services[name]; ok {
		rec.avgResponseTime = avg
	}
}

// RecordDegradationRate updates the fraction (0-100) of recent
// executions served from a degraded fallback level.
func (r *Registry) RecordDegradationRate(name string, rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.services[name]; ok {
		rec.degradationRate = rate
	}
}

// ReliabilityScore computes a service's reliability score in [0,100]:
//
//	40 * min(1, availability/minAvailability)
//	+ 30 * max(0, 1 - avgResponseTime/maxResponseTime)
//	+ 30 * max(0, 1 - degradationRate/100)
func (r *Registry) ReliabilityScore(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.services[name]
	if !ok {
		return 0, false
	}

	availTerm := rec.availability / rec.reg.MinAvailability
	if availTerm > 1 {
		availTerm = 1
	}

	respTerm := 1 - rec.avgResponseTime/rec.reg.MaxResponseTime
	if respTerm < 0 {
		respTerm = 0
	}

	degradeTerm := 1 - rec.degradationRate/100
	if degradeTerm < 0 {
		degradeTerm = 0
	}

	return 40*availTerm + 30*respTerm + 30*degradeTerm, true
}

// UpdateHealth sets a service's health and propagates the change
// breadth-first across the dependency graph: a REQUIRED-dependent of a
// service that becomes UNHEALTHY or OFFLINE becomes UNHEALTHY; an
// OPTIONAL-dependent becomes DEGRADED; a REQUIRED-dependent of a
// service that becomes DEGRADED becomes DEGRADED. Recovery to HEALTHY
// upgrades a dependent only if all of its declared dependencies are
// HEALTHY. Returns the set of services whose health changed, including
// name itself.
func (r *Registry) UpdateHealth(name string, h health.Status) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.services[name]
	if !ok {
		return nil
	}

	changed := map[string]bool{}
	r.setHealth(rec, name, h, changed)

	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for depName, depRec := range r.services {
			for _, e := range depRec.reg.Dependencies {
				if e.Target != cur {
					continue
				}
				if r.applyPropagation(depName, depRec, e) {
					changed[depName] = true
					queue = append(queue, depName)
				}
			}
		}
	}

	out := make([]string, 0, len(changed))
	for n := range changed {
		out = append(out, n)
	}
	return out
}

func (r *Registry) setHealth(rec *serviceRecord, name string, h health.Status, changed map[string]bool) {
	if rec.health == h {
		return
	}
	rec.health = h
	rec.lastCheckTime = time.Now()
	rec.incidents = append(rec.incidents, Incident{
		Time:        rec.lastCheckTime,
		Description: "health changed to " + h.String(),
		Severity:    severityFor(rec.reg.Criticality),
	})
	changed[name] = true
}

// applyPropagation recomputes depRec's health from the dependency edge
// e (whose Target just changed) and, if that changes depRec's health,
// applies it and returns true.
func (r *Registry) applyPropagation(depName string, depRec *serviceRecord, e Edge) bool {
	srcRec, ok := r.services[e.Target]
	if !ok {
		return false
	}

	switch e.Type {
	case Required:
		if srcRec.health == health.StatusUnhealthy || srcRec.health == health.StatusOffline {
			return r.transition(depName, depRec, health.StatusUnhealthy)
		}
		if srcRec.health == health.StatusDegraded {
			return r.transition(depName, depRec, health.StatusDegraded)
		}
	case Optional:
		if srcRec.health == health.StatusUnhealthy || srcRec.health == health.StatusOffline {
			return r.transition(depName, depRec, health.StatusDegraded)
		}
	case Fallback:
		return false
	}

	if srcRec.health == health.StatusHealthy && r.allDependenciesHealthy(depRec) {
		return r.transition(depName, depRec, health.StatusHealthy)
	}
	return false
}

func (r *Registry) allDependenciesHealthy(rec *serviceRecord) bool {
	for _, e := range rec.reg.Dependencies {
		if e.Type == Fallback {
			continue
		}
		dep, ok := r.services[e.Target]
		if !ok || dep.health != health.StatusHealthy {
			return false
		}
	}
	return true
}

func (r *Registry) transition(name string, rec *serviceRecord, h health.Status) bool {
	if rec.health == h {
		return false
	}
	changed := map[string]bool{}
	r.setHealth(rec, name, h, changed)
	return true
}

func severityFor(c healthcheck.Criticality) string {
	switch c {
	case healthcheck.Critical:
		return "critical"
	case healthcheck.High:
		return "high"
	default:
		return "medium"
	}
}

// Cycles reports every dependency cycle in the graph via DFS with a
// recursion stack. Cycles are never auto-broken.
func (r *Registry) Cycles() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	deps := make(map[string][]Edge, len(r.services))
	for name, rec := range r.services {
		deps[name] = rec.reg.Dependencies
	}
	return detectCycles(deps)
}

// Impact is the result of a blast-radius analysis for one service.
type Impact struct {
	Service          string
	Affected         []string
	BlastRadius      float64
	Severity         string
	FailedDependents int
}

// AnalyzeImpact computes the blast radius of service failing: the
// fraction of all registered services that transitively depend on it
// (direct and indirect, via any edge type), and a severity derived
// from service's declared criticality and its direct dependent count.
func (r *Registry) AnalyzeImpact(service string) Impact {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.services[service]
	if !ok {
		return Impact{Service: service}
	}

	dependents := make(map[string][]string) // target -> []dependent
	for name, svcRec := range r.services {
		for _, e := range svcRec.reg.Dependencies {
			dependents[e.Target] = append(dependents[e.Target], name)
		}
	}

	visited := map[string]bool{}
	queue := []string{service}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[cur] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	affected := make([]string, 0, len(visited))
	for name := range visited {
		affected = append(affected, name)
	}

	directFailed := len(dependents[service])
	blastRadius := 0.0
	if total := len(r.services); total > 0 {
		blastRadius = float64(len(affected)) / float64(total)
	}

	var severity string
	switch {
	case rec.reg.Criticality == healthcheck.Critical || directFailed > 3:
		severity = "critical"
	case rec.reg.Criticality == healthcheck.High || directFailed > 1:
		severity = "high"
	default:
		severity = "medium"
	}

	return Impact{
		Service:          service,
		Affected:         affected,
		BlastRadius:      blastRadius,
		Severity:         severity,
		FailedDependents: directFailed,
	}
}
