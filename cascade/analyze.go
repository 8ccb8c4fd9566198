package cascade

import (
	"fmt"
	"time"

	"github.com/reliabilityfabric/fabric/healthcheck"
)

// AnalyzeResult is one pass of Analyze's output.
type AnalyzeResult struct {
	Correlations []Correlation
	Predictions  []Prediction
}

// Analyze runs one correlation and prediction pass over every service
// with at least MinFailureThreshold failures in the last
// CorrelationWindow. Call it periodically (e.g. via Start) or directly
// from tests. Correlation cache entries are refreshed for every pair
// found active this pass and expire naturally after 2*CorrelationWindow
// once neither endpoint has failed recently.
func (d *Detector) Analyze() AnalyzeResult {
	d.mu.Lock()
	active := make(map[string]*serviceState, len(d.services))
	now := time.Now()
	for name, st := range d.services {
		d.trimLocked(st, now)
		if len(st.failures) >= d.config.MinFailureThreshold {
			active[name] = st
		}
	}
	names := make([]string, 0, len(active))
	snapshots := make(map[string][]failureRecord, len(active))
	criticality := make(map[string]healthcheck.Criticality, len(active))
	consecutive := make(map[string]int, len(active))
	for name, st := range active {
		names = append(names, name)
		snapshots[name] = append([]failureRecord{}, st.failures...)
		criticality[name] = st.criticality
		consecutive[name] = st.consecutiveFails
	}
	window := d.config.CorrelationWindow
	threshold := d.config.CorrelationThreshold
	dependentsFn := d.config.Dependents
	bulkheadFn := d.config.BulkheadState
	degradeFn := d.config.DegradationLevel
	d.mu.Unlock()

	var result AnalyzeResult

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			score := correlationScore(snapshots[a], snapshots[b], window)
			if score >= threshold {
				result.Correlations = append(result.Correlations, Correlation{ServiceA: a, ServiceB: b, Score: score})
				d.correlations.Set(pairKey(a, b), score, 2*window)
			}
		}
	}

	for _, name := range names {
		var depCount int
		if dependentsFn != nil {
			depCount = len(dependentsFn(name))
		}
		failureRate := float64(len(snapshots[name])) / window.Hours()

		mult := 1.0
		switch criticality[name] {
		case healthcheck.Critical:
			mult = 1.5
		case healthcheck.High:
			mult = 1.2
		}

		probability := failureRate * mult * float64(consecutive[name]) / 10
		if probability > 1 {
			probability = 1
		}

		impact := impactFor(criticality[name], depCount)

		recommendation := "monitor"
		if bulkheadFn != nil {
			recommendation = fmt.Sprintf("bulkhead:%s", bulkheadFn(name))
		}
		if degradeFn != nil {
			recommendation = fmt.Sprintf("%s level:%s", recommendation, degradeFn(name))
		}
		if depCount > 0 {
			recommendation = fmt.Sprintf("%s dependents:%d", recommendation, depCount)
		}

		result.Predictions = append(result.Predictions, Prediction{
			Service:        name,
			Probability:    probability,
			Impact:         impact,
			Recommendation: recommendation,
		})
	}

	return result
}

// correlationScore counts simultaneous matches (timestamps within 5s)
// and sequential matches (within window/10), taking the larger of the
// two counts as "shared", then divides by the larger failure set size.
func correlationScore(a, b []failureRecord, window time.Duration) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	const simultaneousTolerance = 5 * time.Second
	sequentialTolerance := window / 10

	simultaneous := countMatches(a, b, simultaneousTolerance)
	sequential := countMatches(a, b, sequentialTolerance)

	shared := simultaneous
	if sequential > shared {
		shared = sequential
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(shared) / float64(maxLen)
}

func countMatches(a, b []failureRecord, tolerance time.Duration) int {
	count := 0
	for _, fa := range a {
		for _, fb := range b {
			d := fa.ts.Sub(fb.ts)
			if d < 0 {
				d = -d
			}
			if d <= tolerance {
				count++
				break
			}
		}
	}
	return count
}

func impactFor(c healthcheck.Criticality, dependentCount int) string {
	switch {
	case c == healthcheck.Critical || dependentCount > 3:
		return "critical"
	case c == healthcheck.High || dependentCount > 1:
		return "high"
	default:
		return "medium"
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Start launches a background goroutine calling Analyze on
// AnalysisInterval (default 30s) until Stop is called.
func (d *Detector) Start(analysisInterval time.Duration) {
	if analysisInterval <= 0 {
		analysisInterval = 30 * time.Second
	}

	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(analysisInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Analyze()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the background analysis goroutine started by Start.
func (d *Detector) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
