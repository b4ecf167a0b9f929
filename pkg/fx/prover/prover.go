package prover

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/chainsched"
	"github.com/storacha/proofbuddy/pkg/dealproof/content"
	"github.com/storacha/proofbuddy/pkg/dealproof/coordinator"
	"github.com/storacha/proofbuddy/pkg/dealproof/proofstore"
	"github.com/storacha/proofbuddy/pkg/dealproof/prover"
	"github.com/storacha/proofbuddy/pkg/store/objectstore"
	"github.com/storacha/proofbuddy/pkg/telemetry"
)

var log = logging.Logger("fx/prover")

var Module = fx.Module("prover",
	fx.Provide(
		ProvideContentStore,
		ProvideProofStore,
		ProvideTreeCache,
		ProvideService,
		ProvideScheduler,
	),
	// NB: order matters, deals are registered before the scheduler polls the
	// first head.
	fx.Invoke(
		RegisterDeals,
		StartScheduler,
	),
)

type ContentStoreParams struct {
	fx.In
	Objects objectstore.Store `name:"content_objects"`
}

func ProvideContentStore(params ContentStoreParams) *content.Store {
	return content.New(params.Objects)
}

type ProofStoreParams struct {
	fx.In
	Objects objectstore.Store `name:"proof_objects"`
}

func ProvideProofStore(params ProofStoreParams) *proofstore.Store {
	return proofstore.New(params.Objects)
}

func ProvideTreeCache(cfg app.ProverConfig, store *proofstore.Store) (*prover.TreeCache, error) {
	cache, err := prover.NewTreeCache(cfg.TreeCacheSize, store)
	if err != nil {
		return nil, fmt.Errorf("creating tree cache: %w", err)
	}
	return cache, nil
}

type ServiceParams struct {
	fx.In
	Config  app.ProverConfig
	Chain   chain.API
	Content *content.Store
	Trees   *prover.TreeCache
	Proofs  *proofstore.Store
	// Telemetry is taken so that coordinator instruments are created after
	// export is configured.
	Telemetry *telemetry.Telemetry
}

func ProvideService(lc fx.Lifecycle, params ServiceParams) *prover.Service {
	cfg := params.Config
	opts := []prover.Option{
		prover.WithMaxConcurrent(cfg.MaxConcurrent),
		prover.WithTrees(params.Trees),
		prover.WithCoordinatorOptions(
			coordinator.WithCallTimeout(cfg.CallTimeout),
			coordinator.WithRetry(coordinator.RetryConfig{
				Initial:    cfg.RetryInitial,
				Max:        cfg.RetryMax,
				MaxElapsed: cfg.RetryMaxElapsed,
			}),
		),
	}
	if cfg.Audit {
		opts = append(opts, prover.WithRecorder(params.Proofs))
	}

	svc := prover.New(params.Chain, prover.ContentOpener(params.Content, cfg.CallTimeout), opts...)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return svc.Close()
		},
	})
	return svc
}

func ProvideScheduler(head chainsched.HeadReader, cfg app.ProverConfig) *chainsched.Scheduler {
	return chainsched.New(head,
		chainsched.WithPollInterval(cfg.PollInterval),
		chainsched.WithStallTimeout(cfg.StallTimeout),
	)
}

type RegisterDealsParams struct {
	fx.In
	Service   *prover.Service
	Reader    chain.DealReader
	Deals     app.DealsConfig
	Scheduler *chainsched.Scheduler
}

// RegisterDeals hands every configured deal to the prover and ticks it on
// each new head.
func RegisterDeals(lc fx.Lifecycle, params RegisterDealsParams) error {
	if err := params.Scheduler.AddHandler(params.Service.HandleHead); err != nil {
		return fmt.Errorf("registering head handler: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, d := range params.Deals.Inline {
				if err := params.Service.AddDeal(d); err != nil {
					return fmt.Errorf("adding deal %s: %w", d.ID, err)
				}
			}
			if err := params.Service.AddDeals(ctx, params.Reader, params.Deals.IDs...); err != nil {
				return fmt.Errorf("adding deals: %w", err)
			}
			log.Infow("registered deals", "deals", params.Service.Deals())
			return nil
		},
	})
	return nil
}

func StartScheduler(lc fx.Lifecycle, s *chainsched.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
