package app

import (
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/fx/chain"
	"github.com/storacha/proofbuddy/pkg/fx/prover"
	"github.com/storacha/proofbuddy/pkg/fx/store"
	"github.com/storacha/proofbuddy/pkg/fx/telemetry"
)

func Modules(cfg app.AppConfig) fx.Option {
	var modules = []fx.Option{
		// Supply top level config, and it's sub-configs
		// this allows dependencies to be taken on, for example, app.ProverConfig
		// instead of needing to depend on the top level app.AppConfig
		fx.Supply(cfg),
		fx.Supply(cfg.Chain),
		fx.Supply(cfg.Content),
		fx.Supply(cfg.Prover),
		fx.Supply(cfg.Deals),
		fx.Supply(cfg.Telemetry),

		telemetry.Module,
		chain.Module,
		store.StorageModule(cfg.Content),
		prover.Module,
	}

	return fx.Module("proofbuddy", modules...)
}
