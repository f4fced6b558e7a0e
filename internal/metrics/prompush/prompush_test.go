package prompush

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"tabload/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func summaryCount(t *testing.T, v *prometheus.SummaryVec, lvs ...string) (uint64, float64) {
	t.Helper()
	m := &dto.Metric{}
	if err := v.WithLabelValues(lvs...).(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("x", ""); !errors.Is(err, ErrNoGateway) {
		t.Fatalf("missing URL err = %v, want ErrNoGateway", err)
	}

	tests := []struct {
		job, want string
	}{
		{"", "tabload"},
		{"nightly", "nightly"},
	}
	for _, tc := range tests {
		b, err := NewBackend(tc.job, "http://pushgateway:9091")
		if err != nil {
			t.Fatalf("NewBackend(%q): %v", tc.job, err)
		}
		if b.jobName != tc.want {
			t.Errorf("jobName = %q, want %q", b.jobName, tc.want)
		}
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("t", "http://example.invalid")
	if err != nil {
		t.Fatal(err)
	}

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"kind": "inserted"})
	b.IncCounter(metrics.RowsTotal, -1, metrics.Labels{"kind": "inserted"})
	b.IncCounter(metrics.TablesTotal, 1, metrics.Labels{"status": "failure"})
	b.IncCounter("unknown_total", 9, nil)

	if got := counterValue(t, b.steps.WithLabelValues("load", "success")); got != 2 {
		t.Errorf("steps = %v, want 2", got)
	}
	if got := counterValue(t, b.rows.WithLabelValues("inserted")); got != 5 {
		t.Errorf("rows = %v, want 5", got)
	}
	if got := counterValue(t, b.tables.WithLabelValues("failure")); got != 1 {
		t.Errorf("tables = %v, want 1", got)
	}
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("t", "http://example.invalid")
	if err != nil {
		t.Fatal(err)
	}
	lbls := metrics.Labels{"step": "parse", "status": "success"}
	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, lbls)
	b.ObserveHistogram("other_seconds", 3, lbls)

	n, sum := summaryCount(t, b.duration, "parse", "success")
	if n != 1 || sum != 1.5 {
		t.Fatalf("summary = (%d, %v), want (1, 1.5)", n, sum)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type req struct {
		method, path, body string
	}
	got := make(chan req, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- req{r.Method, r.URL.Path, string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("people", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "inserted"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	r := <-got
	if r.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", r.method)
	}
	if r.path != "/metrics/job/people" {
		t.Errorf("path = %s", r.path)
	}
	if !strings.Contains(r.body, metrics.RowsTotal) {
		t.Errorf("body does not mention %s", metrics.RowsTotal)
	}
}

func TestFlushGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("people", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush succeeded against failing gateway")
	}
}
