package fabric

import (
	"time"

	"github.com/reliabilityfabric/fabric/adaptivelimit"
	"github.com/reliabilityfabric/fabric/backpressure"
)

// sampleInterval is how often watchPressure polls the shared backpressure
// Manager for a level transition. The Manager samples on its own
// configured cadence; this only decides how often we diff its last
// reading against the previously observed level.
const sampleInterval = 250 * time.Millisecond

// watchPressure polls the shared backpressure Manager and emits
// pressure_change whenever its classified Level changes. The Manager
// has no level-change callback of its own (by design -- it is a pure
// sampler), so the fabric owns this diffing loop the same way it owns
// every other periodic task per spec.md §9's single-scheduler-per-task
// design note.
func (f *Fabric) watchPressure() {
	defer close(f.done)
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sample := f.pressure.LastSample()
			f.storeSample(sample)
			if sample.Level != f.lastPressureLevel {
				f.lastPressureLevel = sample.Level
				f.events.emit(Event{Kind: EventPressureChange, Data: sample})
			}
		case <-f.stop:
			return
		}
	}
}

func (f *Fabric) storeSample(s backpressure.Sample) {
	f.sampleBox.Store(s)
}

func (f *Fabric) lastSample() backpressure.Sample {
	v := f.sampleBox.Load()
	if v == nil {
		return backpressure.Sample{}
	}
	return v.(backpressure.Sample)
}

// adaptiveLoadFromPressure maps a backpressure.Sample onto
// adaptivelimit.Load's normalized [0,1] fields.
func adaptiveLoadFromPressure(s backpressure.Sample) adaptivelimit.Load {
	return adaptivelimit.Load{
		Memory: s.MemoryFraction,
		Queue:  clamp01(float64(s.PendingTasks) / 1000),
		Errors: s.ErrorRate,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
