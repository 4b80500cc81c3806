// Package profiler times pipeline stages and reports them periodically.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Profiler tracks operation timings and custom metrics over a sliding window.
type Profiler struct {
	clock      clock.Clock
	logger     *zap.Logger
	interval   time.Duration
	maxSamples int
	startTime  time.Time

	mu         sync.Mutex
	operations map[string]*timeTracker
	metrics    map[string]*metricTracker
}

// timeTracker tracks operation timing statistics.
type timeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

// metricTracker tracks statistics for a custom metric.
type metricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
}

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often Run logs a report (default: 5s)
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// MaxSamples specifies how many samples each tracker keeps (default: 600)
	MaxSamples int `json:"max_samples" yaml:"max_samples"`
	// Clock overrides the wall clock, for tests.
	Clock clock.Clock `json:"-" yaml:"-"`
}

// New creates a profiler.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//   - logger: Receives the periodic reports.
//
// Returns:
//   - *Profiler: A configured profiler.
func New(opts Options, logger *zap.Logger) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Profiler{
		clock:      opts.Clock,
		logger:     logger,
		interval:   opts.ReportInterval,
		maxSamples: opts.MaxSamples,
		startTime:  opts.Clock.Now(),
		operations: make(map[string]*timeTracker),
		metrics:    make(map[string]*metricTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call it when the operation completes.
//
// Example:
//
//	done := p.StartOperation("ocr")
//	text, err := rec.Recognize(ctx, png)
//	done()
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := p.clock.Now()
	return func() {
		p.RecordDuration(name, p.clock.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &timeTracker{min: d, max: d}
		p.operations[name] = t
	}

	t.durations = append(t.durations, d)
	t.total += d
	if len(t.durations) > p.maxSamples {
		t.total -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
	if d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
}

// RecordMetric records a custom metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		m = &metricTracker{min: value, max: value}
		p.metrics[name] = m
	}

	m.values = append(m.values, value)
	m.sum += value
	if len(m.values) > p.maxSamples {
		m.sum -= m.values[0]
		m.values = m.values[1:]
	}
	if value < m.min {
		m.min = value
	}
	if value > m.max {
		m.max = value
	}
}

// OperationStats summarises one operation over the window.
type OperationStats struct {
	Name  string
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// MetricStats summarises one metric over the window.
type MetricStats struct {
	Name    string
	Avg     float64
	Min     float64
	Max     float64
	Samples int
}

// Report is a snapshot of the profiler state.
type Report struct {
	Uptime     time.Duration
	Goroutines int
	HeapAlloc  uint64
	NumGC      uint32
	Operations []OperationStats
	Metrics    []MetricStats
}

// Report returns the current statistics, sorted by name.
func (p *Profiler) Report() Report {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.Lock()
	defer p.mu.Unlock()

	r := Report{
		Uptime:     p.clock.Since(p.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
	}
	for name, t := range p.operations {
		if len(t.durations) == 0 {
			continue
		}
		r.Operations = append(r.Operations, OperationStats{
			Name:  name,
			Avg:   t.total / time.Duration(len(t.durations)),
			Min:   t.min,
			Max:   t.max,
			Count: t.count,
		})
	}
	for name, m := range p.metrics {
		if len(m.values) == 0 {
			continue
		}
		r.Metrics = append(r.Metrics, MetricStats{
			Name:    name,
			Avg:     m.sum / float64(len(m.values)),
			Min:     m.min,
			Max:     m.max,
			Samples: len(m.values),
		})
	}
	sort.Slice(r.Operations, func(i, j int) bool { return r.Operations[i].Name < r.Operations[j].Name })
	sort.Slice(r.Metrics, func(i, j int) bool { return r.Metrics[i].Name < r.Metrics[j].Name })
	return r
}

// Run logs a report every interval until ctx is done.
func (p *Profiler) Run(ctx context.Context) {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(p.Report())
		}
	}
}

// emit writes one report to the logger.
func (p *Profiler) emit(r Report) {
	fields := []zap.Field{
		zap.Duration("uptime", r.Uptime.Truncate(time.Millisecond)),
		zap.Int("goroutines", r.Goroutines),
		zap.String("heap", formatBytes(r.HeapAlloc)),
		zap.Uint32("gc_cycles", r.NumGC),
	}
	for _, op := range r.Operations {
		fields = append(fields, zap.String("op."+op.Name, fmt.Sprintf("avg=%v min=%v max=%v count=%d",
			op.Avg.Truncate(time.Microsecond), op.Min.Truncate(time.Microsecond),
			op.Max.Truncate(time.Microsecond), op.Count)))
	}
	for _, m := range r.Metrics {
		fields = append(fields, zap.String("metric."+m.Name, fmt.Sprintf("avg=%.2f min=%.2f max=%.2f samples=%d",
			m.Avg, m.Min, m.Max, m.Samples)))
	}
	p.logger.Info("📊 profiler report", fields...)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
