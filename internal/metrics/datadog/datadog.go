// Package datadog is a metrics.Backend that buffers tabload counters and step
// timings in memory and submits them through the Datadog metrics API.
//
// Buffers are flushed on a ticker (default once a minute) and once more on
// Close, so a long batch run produces a time series and a short one a single
// point. Flush swaps the buffers under the lock and submits outside it.
//
// Credentials come from the standard DD_API_KEY / DD_APP_KEY / DD_SITE
// environment variables read by the Datadog client.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"tabload/internal/metrics"
)

// DefaultFlushEvery is used when Options.FlushEvery is not positive.
const DefaultFlushEvery = time.Minute

// Options configures a Backend.
type Options struct {
	// JobName becomes the "job:<name>" tag. Defaults to "tabload".
	JobName string
	// Tags are extra tags such as "service:loader".
	Tags       []string
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

// submitter is the part of *datadogV2.MetricsApi the backend uses.
type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api submitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once
	closeErr   error

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffer
}

// buffer holds one collection window.
type buffer struct {
	steps     map[string]float64   // step\x00status -> count
	durations map[string][]float64 // step\x00status -> seconds
	rows      map[string]float64   // kind -> count
	tables    map[string]float64   // status -> count
}

func newBuffer() buffer {
	return buffer{
		steps:     map[string]float64{},
		durations: map[string][]float64{},
		rows:      map[string]float64{},
		tables:    map[string]float64{},
	}
}

func (b buffer) empty() bool {
	return len(b.steps) == 0 && len(b.durations) == 0 && len(b.rows) == 0 && len(b.tables) == 0
}

// envTag picks the deployment environment from ENV, then DD_ENV.
func envTag() string {
	for _, k := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// NewBackend builds a Backend and starts its flush loop. Network errors
// surface from Flush and Close, never from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, fmt.Errorf("datadog metrics init: nil context")
	}
	job := opts.JobName
	if job == "" {
		job = "tabload"
	}
	every := opts.FlushEvery
	if every <= 0 {
		every = DefaultFlushEvery
	}

	b := &Backend{
		ctx:        dd.NewDefaultContext(parent),
		api:        opts.submitter,
		flushEvery: every,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   append([]string{envTag(), "job:" + job}, opts.Tags...),
		now:        opts.now,
		newTicker:  opts.newTicker,
		buf:        newBuffer(),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits what is left. Calling it again
// returns the first result.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		b.closeErr = b.Flush()
	})
	return b.closeErr
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.buf.steps[stepKey(labels["step"], labels["status"])] += delta
	case metrics.RowsTotal:
		if kind := labels["kind"]; kind != "" {
			b.buf.rows[kind] += delta
		}
	case metrics.TablesTotal:
		b.buf.tables[orUnknown(labels["status"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDurationSeconds {
		return
	}
	k := stepKey(labels["step"], labels["status"])
	b.mu.Lock()
	b.buf.durations[k] = append(b.buf.durations[k], value)
	b.mu.Unlock()
}

func (b *Backend) swap() buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf
	b.buf = newBuffer()
	return out
}

// Flush submits the buffered window. The buffers are reset even when the
// submission fails.
func (b *Backend) Flush() error {
	snap := b.swap()
	if snap.empty() {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries renders a window as Datadog series, sorted by metric name and
// tags so payloads are stable.
func (b *Backend) buildSeries(s buffer, ts int64) []datadogV2.MetricSeries {
	var out []datadogV2.MetricSeries

	for k, v := range s.steps {
		step, status := splitStepKey(k)
		out = append(out, point("tabload.step.total", datadogV2.METRICINTAKETYPE_COUNT, v, withTags(b.baseTags, "step:"+step, "status:"+status), ts))
	}
	for kind, v := range s.rows {
		out = append(out, point("tabload.rows.total", datadogV2.METRICINTAKETYPE_COUNT, v, withTags(b.baseTags, "kind:"+kind), ts))
	}
	for status, v := range s.tables {
		out = append(out, point("tabload.tables.total", datadogV2.METRICINTAKETYPE_COUNT, v, withTags(b.baseTags, "status:"+status), ts))
	}
	for k, samples := range s.durations {
		step, status := splitStepKey(k)
		out = append(out, summarize("tabload.step.duration_seconds", samples, withTags(b.baseTags, "step:"+step, "status:"+status), ts)...)
	}

	slices.SortFunc(out, func(x, y datadogV2.MetricSeries) int {
		if c := strings.Compare(x.Metric, y.Metric); c != 0 {
			return c
		}
		return strings.Compare(strings.Join(x.Tags, ","), strings.Join(y.Tags, ","))
	})
	return out
}

// summarize emits p50/p90/p95/p99/max/samples gauges without touching samples.
func summarize(prefix string, samples []float64, tags []string, ts int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	s := slices.Clone(samples)
	slices.Sort(s)
	g := datadogV2.METRICINTAKETYPE_GAUGE
	return []datadogV2.MetricSeries{
		point(prefix+".p50", g, nearestRank(s, 0.50), tags, ts),
		point(prefix+".p90", g, nearestRank(s, 0.90), tags, ts),
		point(prefix+".p95", g, nearestRank(s, 0.95), tags, ts),
		point(prefix+".p99", g, nearestRank(s, 0.99), tags, ts),
		point(prefix+".max", g, s[len(s)-1], tags, ts),
		point(prefix+".samples", g, float64(len(s)), tags, ts),
	}
}

func point(metric string, typ datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

// nearestRank expects s sorted ascending.
func nearestRank(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	return s[min(max(idx, 0), n-1)]
}

func stepKey(step, status string) string { return step + "\x00" + orUnknown(status) }

func splitStepKey(k string) (step, status string) {
	step, status, ok := strings.Cut(k, "\x00")
	if !ok {
		return k, "unknown"
	}
	return step, status
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// withTags returns a fresh slice; base is never aliased.
func withTags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	return append(append(out, base...), extra...)
}

// ParseTagsCSV splits "env:prod, team:data" into trimmed, non-empty tags.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
