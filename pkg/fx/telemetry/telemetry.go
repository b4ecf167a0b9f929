package telemetry

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/build"
	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/telemetry"
)

var log = logging.Logger("fx/telemetry")

var Module = fx.Module("telemetry",
	fx.Provide(ProvideTelemetry),
)

// ProvideTelemetry installs the global telemetry instance. Depending on it
// makes sure instruments are created after export is configured. Without an
// endpoint the noop instance is returned.
func ProvideTelemetry(lc fx.Lifecycle, cfg app.TelemetryConfig) (*telemetry.Telemetry, error) {
	if cfg.Endpoint == "" {
		log.Info("no telemetry endpoint configured, metrics are not exported")
		return telemetry.Global(), nil
	}
	err := telemetry.Initialize(context.Background(), telemetry.Config{
		ServiceName:     "proofbuddy",
		ServiceVersion:  build.Version,
		Environment:     cfg.Environment,
		Endpoint:        cfg.Endpoint,
		Insecure:        cfg.Insecure,
		Headers:         cfg.Headers,
		PublishInterval: cfg.PublishInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return telemetry.Shutdown(ctx)
		},
	})
	return telemetry.Global(), nil
}
