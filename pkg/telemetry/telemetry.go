// Package telemetry wraps the OpenTelemetry metric API with small typed
// instruments used by the prover.
//
// Instruments are created from a [Telemetry] instance:
//
//	tel := telemetry.Global()
//	submitted, _ := tel.NewCounter(telemetry.CounterConfig{
//	    Name:        "dealproof_proofs_submitted",
//	    Description: "Proofs accepted by the chain",
//	})
//	submitted.Inc(ctx, telemetry.Int64Attr("deal", 7))
//
// Until [Initialize] is called the global instance records into a noop meter.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Telemetry struct {
	provider *Provider
	meter    metric.Meter
}

func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	return &Telemetry{
		provider: provider,
		meter:    provider.Meter(),
	}, nil
}

// NewWithMeter creates a Telemetry instance around an existing meter, for
// example one backed by a manual reader in tests.
func NewWithMeter(meter metric.Meter) *Telemetry {
	return &Telemetry{meter: meter}
}

func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

func (t *Telemetry) NewCounter(cfg CounterConfig) (*Counter, error) {
	return NewCounter(t.meter, cfg)
}

func (t *Telemetry) NewGauge(cfg GaugeConfig) (*Gauge, error) {
	return NewGauge(t.meter, cfg)
}

func (t *Telemetry) NewTimer(cfg TimerConfig) (*Timer, error) {
	return NewTimer(t.meter, cfg)
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func Int64Attr(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

func Uint64Attr(key string, value uint64) attribute.KeyValue {
	return attribute.Int64(key, int64(value))
}

// LatencyBoundaries are histogram buckets in milliseconds.
var LatencyBoundaries = []float64{
	1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000,
}
