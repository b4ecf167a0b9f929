package coordinator

import (
	"github.com/raulk/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/telemetry"
)

type metrics struct {
	proofsSubmitted *telemetry.Counter
	proofsFailed    *telemetry.Counter
	windowsMissed   *telemetry.Counter
	dealFailures    *telemetry.Counter
	generation      *telemetry.Timer
	pendingWindows  *telemetry.Gauge
}

// newMetrics creates the coordinator instruments on the global telemetry
// instance. An instrument that fails to initialize is left nil, which records
// nothing.
func newMetrics(clk clock.Clock) *metrics {
	tel := telemetry.Global()
	newCounter := func(name, desc string) *telemetry.Counter {
		counter, err := tel.NewCounter(telemetry.CounterConfig{Name: name, Description: desc})
		if err != nil {
			log.Warnw("failed to init telemetry counter", "name", name, "error", err)
			return nil
		}
		return counter
	}

	m := &metrics{
		proofsSubmitted: newCounter("dealproof_proofs_submitted", "proofs accepted by the chain"),
		proofsFailed:    newCounter("dealproof_proofs_failed", "proof attempts that failed, by error kind"),
		windowsMissed:   newCounter("dealproof_windows_missed", "proof windows that closed without an accepted proof"),
		dealFailures:    newCounter("dealproof_deal_failures", "deals that can no longer be proven"),
	}

	var err error
	m.generation, err = tel.NewTimer(telemetry.TimerConfig{
		Name:        "dealproof_proof_generation_duration",
		Description: "time to open content, obtain the outboard tree and extract a verified slice proof",
		Boundaries:  telemetry.LatencyBoundaries,
		Clock:       clk,
	})
	if err != nil {
		log.Warnw("failed to init proof generation timer", "error", err)
	}
	m.pendingWindows, err = tel.NewGauge(telemetry.GaugeConfig{
		Name:        "dealproof_pending_windows",
		Description: "windows of the deal not yet resolved",
		Unit:        "{window}",
	})
	if err != nil {
		log.Warnw("failed to init pending windows gauge", "error", err)
	}
	return m
}

func dealAttr(id types.DealID) attribute.KeyValue {
	return telemetry.Uint64Attr("deal", uint64(id))
}

func reasonAttr(err error) attribute.KeyValue {
	return telemetry.StringAttr("reason", types.KindOf(err).String())
}
