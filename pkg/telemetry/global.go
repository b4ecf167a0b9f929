package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric/noop"
)

var (
	globalTelemetry *Telemetry
	globalMu        sync.RWMutex
)

// Initialize sets up the global telemetry instance. It should be called once
// at startup, before any instruments are created.
func Initialize(ctx context.Context, cfg Config) error {
	tel, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	SetGlobal(tel)
	return nil
}

// Global returns the global telemetry instance, or a noop instance when
// Initialize has not been called.
func Global() *Telemetry {
	globalMu.RLock()
	tel := globalTelemetry
	globalMu.RUnlock()
	if tel != nil {
		return tel
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalTelemetry == nil {
		globalTelemetry = NewWithMeter(noop.NewMeterProvider().Meter("noop"))
	}
	return globalTelemetry
}

// SetGlobal replaces the global instance. Passing nil resets it to noop on the
// next call to Global.
func SetGlobal(tel *Telemetry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalTelemetry = tel
}

// Shutdown flushes and stops the global instance.
func Shutdown(ctx context.Context) error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalTelemetry != nil {
		return globalTelemetry.Shutdown(ctx)
	}
	return nil
}
