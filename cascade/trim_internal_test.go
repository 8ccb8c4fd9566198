package cascade

import (
	"testing"
	"time"
)

func TestTrimLocked_CapsToMaxHistorySize(t *testing.T) {
	d := New(Config{CorrelationWindow: time.Hour, MaxHistorySize: 5})

	now := time.Now()
	d.mu.Lock()
	st := d.serviceLocked("flapping")
	for i := 0; i < 50; i++ {
		st.failures = append(st.failures, failureRecord{ts: now, kind: "timeout", msg: "boom"})
	}
	d.trimLocked(st, now)
	got := len(st.failures)
	d.mu.Unlock()

	if got != 5 {
		t.Fatalf("len(failures) = %d, want 5 (MaxHistorySize)", got)
	}
}

func TestTrimLocked_KeepsMostRecentEntries(t *testing.T) {
	d := New(Config{CorrelationWindow: time.Hour, MaxHistorySize: 3})

	now := time.Now()
	d.mu.Lock()
	st := d.serviceLocked("flapping")
	for i := 0; i < 5; i++ {
		st.failures = append(st.failures, failureRecord{ts: now, kind: "timeout", msg: string(rune('a' + i))})
	}
	d.trimLocked(st, now)
	msgs := make([]string, len(st.failures))
	for i, f := range st.failures {
		msgs[i] = f.msg
	}
	d.mu.Unlock()

	want := []string{"c", "d", "e"}
	if len(msgs) != len(want) {
		t.Fatalf("msgs = %v, want %v", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("msgs = %v, want %v", msgs, want)
		}
	}
}
