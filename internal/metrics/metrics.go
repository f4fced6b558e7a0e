// Package metrics records operational counters and timings for tabload runs
// without tying the pipeline to a metrics system. A no-op backend is installed
// by default; cmd/tabload swaps in datadog or prompush on request.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by every backend.
const (
	StepTotal           = "tabload_step_total"
	StepDurationSeconds = "tabload_step_duration_seconds"
	RowsTotal           = "tabload_rows_total"
	TablesTotal         = "tabload_tables_total"
)

// Step statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by concrete metric sinks.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data, if the backend buffers at all.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one pipeline stage and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind ("processed", "inserted",
// "failed", "invalid"). Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordTable counts one finished table load with its outcome.
func RecordTable(job string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	current().IncCounter(TablesTotal, 1, Labels{"job": job, "status": status})
}
