package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/raulk/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func fixedAttrs(m map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func merge(base, extra []attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(base)+len(extra))
	all = append(all, base...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}

// Counter is a monotonically increasing int64 count.
type Counter struct {
	counter metric.Int64Counter
	attrs   []attribute.KeyValue
}

type CounterConfig struct {
	Name        string
	Description string
	Unit        string
	Attributes  map[string]string
}

func NewCounter(meter metric.Meter, cfg CounterConfig) (*Counter, error) {
	opts := []metric.Int64CounterOption{metric.WithDescription(cfg.Description)}
	if cfg.Unit != "" {
		opts = append(opts, metric.WithUnit(cfg.Unit))
	}
	counter, err := meter.Int64Counter(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", cfg.Name, err)
	}
	return &Counter{counter: counter, attrs: fixedAttrs(cfg.Attributes)}, nil
}

func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, value, merge(c.attrs, attrs))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Gauge records the latest int64 value.
type Gauge struct {
	gauge metric.Int64Gauge
	attrs []attribute.KeyValue
}

type GaugeConfig struct {
	Name        string
	Description string
	Unit        string
	Attributes  map[string]string
}

func NewGauge(meter metric.Meter, cfg GaugeConfig) (*Gauge, error) {
	opts := []metric.Int64GaugeOption{metric.WithDescription(cfg.Description)}
	if cfg.Unit != "" {
		opts = append(opts, metric.WithUnit(cfg.Unit))
	}
	gauge, err := meter.Int64Gauge(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", cfg.Name, err)
	}
	return &Gauge{gauge: gauge, attrs: fixedAttrs(cfg.Attributes)}, nil
}

func (g *Gauge) Record(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if g == nil {
		return
	}
	g.gauge.Record(ctx, value, merge(g.attrs, attrs))
}

// Timer is a histogram of durations in milliseconds.
type Timer struct {
	histogram metric.Float64Histogram
	attrs     []attribute.KeyValue
	clock     clock.Clock
}

type TimerConfig struct {
	Name        string
	Description string
	Attributes  map[string]string
	Boundaries  []float64
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

func NewTimer(meter metric.Meter, cfg TimerConfig) (*Timer, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(cfg.Description),
		metric.WithUnit("ms"),
	}
	if len(cfg.Boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(cfg.Boundaries...))
	}
	histogram, err := meter.Float64Histogram(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create timer %s: %w", cfg.Name, err)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{histogram: histogram, attrs: fixedAttrs(cfg.Attributes), clock: clk}, nil
}

func (t *Timer) Record(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	if t == nil {
		return
	}
	t.histogram.Record(ctx, float64(d)/float64(time.Millisecond), merge(t.attrs, attrs))
}

// StopWatch measures a single timed operation.
type StopWatch struct {
	timer *Timer
	start time.Time
	attrs []attribute.KeyValue
}

func (t *Timer) Start(attrs ...attribute.KeyValue) *StopWatch {
	sw := &StopWatch{timer: t, attrs: attrs}
	if t != nil {
		sw.start = t.clock.Now()
	}
	return sw
}

// Stop records the elapsed time and returns it.
func (s *StopWatch) Stop(ctx context.Context, attrs ...attribute.KeyValue) time.Duration {
	if s.timer == nil {
		return 0
	}
	elapsed := s.timer.clock.Since(s.start)
	s.timer.Record(ctx, elapsed, append(s.attrs, attrs...)...)
	return elapsed
}
