package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type fakeBackend struct {
	mu       sync.Mutex
	counters []counterCall
	hists    []counterCall
	flushes  int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hists = append(f.hists, counterCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// install swaps the package backend for the duration of a test. Tests using
// it must not run in parallel.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(nil) })
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("people", "parse", nil, 2*time.Second)
	RecordStep("people", "load", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.hists) != 2 {
		t.Fatalf("calls = %d counters, %d hists; want 2, 2", len(fb.counters), len(fb.hists))
	}
	tests := []struct {
		i      int
		step   string
		status string
		secs   float64
	}{
		{0, "parse", StatusSuccess, 2},
		{1, "load", StatusFailure, 1.5},
	}
	for _, tc := range tests {
		c := fb.counters[tc.i]
		if c.name != StepTotal || c.delta != 1 {
			t.Errorf("counter[%d] = %+v", tc.i, c)
		}
		if c.labels["job"] != "people" || c.labels["step"] != tc.step || c.labels["status"] != tc.status {
			t.Errorf("counter[%d] labels = %v", tc.i, c.labels)
		}
		h := fb.hists[tc.i]
		if h.name != StepDurationSeconds || h.delta != tc.secs {
			t.Errorf("hist[%d] = %+v, want %v seconds", tc.i, h, tc.secs)
		}
	}
}

func TestRecordRowAndTable(t *testing.T) {
	fb := install(t)

	RecordRow("orders", "inserted", 3)
	RecordRow("orders", "failed", 0)
	RecordRow("orders", "failed", -2)
	RecordTable("orders", nil)
	RecordTable("orders", errors.New("x"))

	if len(fb.counters) != 3 {
		t.Fatalf("counters = %d, want 3", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != RowsTotal || c.delta != 3 || c.labels["kind"] != "inserted" {
		t.Errorf("row counter = %+v", c)
	}
	if c := fb.counters[1]; c.name != TablesTotal || c.labels["status"] != StatusSuccess {
		t.Errorf("table counter = %+v", c)
	}
	if c := fb.counters[2]; c.labels["status"] != StatusFailure {
		t.Errorf("failed table counter = %+v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", fb.flushes)
	}

	SetBackend(nil)
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("SetBackend(nil) installed %T, want nopBackend", current())
	}
	RecordRow("x", "inserted", 1)
	if len(fb.counters) != 0 {
		t.Fatalf("old backend still receives calls")
	}
}
