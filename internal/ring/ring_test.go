package ring_test

import (
	"testing"

	"github.com/reliabilityfabric/fabric/internal/ring"
)

func TestBuffer_Snapshot_PreservesOrderAfterWrap(t *testing.T) {
	b := ring.New(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		b.Add(v)
	}
	got := b.Snapshot()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}
}

func TestSummarize_Percentiles(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i + 1) // 1..100
	}

	s := ring.Summarize(samples)
	if s.Min != 1 || s.Max != 100 {
		t.Fatalf("min/max = %v/%v, want 1/100", s.Min, s.Max)
	}
	if s.P50 != 50 {
		t.Fatalf("P50 = %v, want 50", s.P50)
	}
	if s.P99 != 99 {
		t.Fatalf("P99 = %v, want 99", s.P99)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := ring.Summarize(nil)
	if s.N != 0 {
		t.Fatalf("expected N=0 for empty input, got %d", s.N)
	}
}
