package fabricmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/singleflight"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON       Format = "json"
	FormatPrometheus Format = "prometheus"
	FormatSummary    Format = "summary"
)

// Inputs are the raw counts the Exporter harvests each collection
// cycle; Config.Collect supplies them from the orchestrator's state.
type Inputs struct {
	ServicesTotal, ServicesHealthy, ServicesDegraded, ServicesUnhealthy int

	RateLimitersTotal, RateLimitersThrottled      int
	RateLimiterTotalRequests, RateLimiterRejected uint64

	BulkheadsTotal, BulkheadsDegradedOrClosed int

	ErrorBudgetsTotal, ErrorBudgetsExhausted int

	LatencyBudgetsTotal, LatencyBudgetsBreached int

	DependenciesTotal, DependenciesUnhealthy int

	// CascadeRiskLevel is one of "low", "medium", "high", "critical".
	CascadeRiskLevel string
}

// Snapshot is a harvested, scored reading of the fabric's state.
type Snapshot struct {
	Timestamp   time.Time
	Inputs      Inputs
	HealthScore float64
}

// Config configures an Exporter.
type Config struct {
	// Collect harvests the current raw inputs. Required.
	Collect func(ctx context.Context) Inputs

	// CollectionInterval is how often Start harvests automatically.
	// Default: 30s
	CollectionInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.CollectionInterval <= 0 {
		c.CollectionInterval = 30 * time.Second
	}
	return c
}

// Exporter periodically harvests a Snapshot and renders it in JSON,
// Prometheus text, or human-summary form.
type Exporter struct {
	config Config
	sf     singleflight.Group

	mu   sync.Mutex
	last Snapshot

	stop chan struct{}
	done chan struct{}
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	return &Exporter{config: cfg.withDefaults()}
}

// Collect harvests one Snapshot, deduping concurrent callers so only
// one underlying Config.Collect call is in flight at a time.
func (e *Exporter) Collect(ctx context.Context) Snapshot {
	v, _, _ := e.sf.Do("collect", func() (any, error) {
		in := e.config.Collect(ctx)
		snap := Snapshot{Timestamp: time.Now(), Inputs: in, HealthScore: healthScore(in)}
		e.mu.Lock()
		e.last = snap
		e.mu.Unlock()
		return snap, nil
	})
	return v.(Snapshot)
}

// LastSnapshot returns the most recently collected Snapshot.
func (e *Exporter) LastSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// healthScore computes the weighted health score in [0,100]:
// services 0.25, rate limiters 0.10, bulkheads 0.15, error budgets
// 0.20, latency budgets 0.20, dependencies 0.10. A category with no
// members scores a perfect 1.
func healthScore(in Inputs) float64 {
	services := 1.0
	if in.ServicesTotal > 0 {
		services = ratio(in.ServicesHealthy, in.ServicesTotal)
	}
	rateLimiters := 1 - ratio(in.RateLimitersThrottled, in.RateLimitersTotal)
	bulkheads := 1 - ratio(in.BulkheadsDegradedOrClosed, in.BulkheadsTotal)
	errorBudgets := 1 - ratio(in.ErrorBudgetsExhausted, in.ErrorBudgetsTotal)
	latencyBudgets := 1 - ratio(in.LatencyBudgetsBreached, in.LatencyBudgetsTotal)
	dependencies := 1 - ratio(in.DependenciesUnhealthy, in.DependenciesTotal)

	return 100 * (0.25*services + 0.10*rateLimiters + 0.15*bulkheads +
		0.20*errorBudgets + 0.20*latencyBudgets + 0.10*dependencies)
}

func ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// cascadeRiskCode maps CascadeRiskLevel to the spec's 1-4 scale.
func cascadeRiskCode(level string) float64 {
	switch level {
	case "medium":
		return 2
	case "high":
		return 3
	case "critical":
		return 4
	default:
		return 1
	}
}

// Export renders the Exporter's last snapshot in the requested format.
// If no snapshot has been collected yet, it collects one first.
func (e *Exporter) Export(ctx context.Context, format Format) (string, error) {
	snap := e.LastSnapshot()
	if snap.Timestamp.IsZero() {
		snap = e.Collect(ctx)
	}

	switch format {
	case FormatJSON:
		return exportJSON(snap)
	case FormatPrometheus:
		return exportPrometheus(snap)
	case FormatSummary:
		return exportSummary(snap), nil
	default:
		return "", fmt.Errorf("fabricmetrics: unknown format %q", format)
	}
}

func exportJSON(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func exportSummary(snap Snapshot) string {
	in := snap.Inputs
	return fmt.Sprintf(
		"Reliability Fabric Summary (%s)\n"+
			"  Health Score: %.1f/100\n"+
			"  Services: %d total, %d healthy, %d degraded, %d unhealthy\n"+
			"  Rate Limiters: %d total, %d throttled\n"+
			"  Bulkheads: %d total, %d degraded/closed\n"+
			"  Error Budgets: %d total, %d exhausted\n"+
			"  Latency Budgets: %d total, %d breached\n"+
			"  Dependencies: %d total, %d unhealthy\n"+
			"  Cascade Risk: %s\n",
		snap.Timestamp.Format(time.RFC3339),
		snap.HealthScore,
		in.ServicesTotal, in.ServicesHealthy, in.ServicesDegraded, in.ServicesUnhealthy,
		in.RateLimitersTotal, in.RateLimitersThrottled,
		in.BulkheadsTotal, in.BulkheadsDegradedOrClosed,
		in.ErrorBudgetsTotal, in.ErrorBudgetsExhausted,
		in.LatencyBudgetsTotal, in.LatencyBudgetsBreached,
		in.DependenciesTotal, in.DependenciesUnhealthy,
		in.CascadeRiskLevel,
	)
}

func exportPrometheus(snap Snapshot) (string, error) {
	ts := snap.Timestamp.UnixMilli()
	in := snap.Inputs

	families := []struct {
		name  string
		value float64
	}{
		{"reliability_health_score", snap.HealthScore},
		{"reliability_services_total", float64(in.ServicesTotal)},
		{"reliability_services_healthy", float64(in.ServicesHealthy)},
		{"reliability_services_degraded", float64(in.ServicesDegraded)},
		{"reliability_services_unhealthy", float64(in.ServicesUnhealthy)},
		{"reliability_rate_limiters_throttled", float64(in.RateLimitersThrottled)},
		{"reliability_rate_limiters_total_requests", float64(in.RateLimiterTotalRequests)},
		{"reliability_rate_limiters_rejected_requests", float64(in.RateLimiterRejected)},
		{"reliability_error_budgets_exhausted", float64(in.ErrorBudgetsExhausted)},
		{"reliability_latency_budgets_breached", float64(in.LatencyBudgetsBreached)},
		{"reliability_cascade_risk_level", cascadeRiskCode(in.CascadeRiskLevel)},
	}

	var buf bytes.Buffer
	for _, f := range families {
		name := f.name
		value := f.value
		timestampMs := ts
		mf := &dto.MetricFamily{
			Name: &name,
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{
				{
					Gauge:       &dto.Gauge{Value: &value},
					TimestampMs: &timestampMs,
				},
			},
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Start launches a background goroutine collecting on
// CollectionInterval until Stop is called.
func (e *Exporter) Start() {
	e.mu.Lock()
	if e.stop != nil {
		e.mu.Unlock()
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stop, e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(e.config.CollectionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Collect(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the background collection goroutine started by Start.
func (e *Exporter) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
