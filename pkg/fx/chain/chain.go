package chain

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/chainsched"
)

var log = logging.Logger("fx/chain")

// Client is everything the prover needs from the chain.
type Client interface {
	chain.API
	chain.DealReader
}

var Module = fx.Module("chain",
	fx.Provide(
		fx.Annotate(
			ProvideClient,
			fx.As(fx.Self()),
			fx.As(new(chain.API)),
			fx.As(new(chain.DealReader)),
			fx.As(new(chainsched.HeadReader)),
		),
	),
)

// ProvideClient connects to the configured chain. A memory chain is seeded
// with the inline deals and produces a block every BlockTime.
func ProvideClient(lc fx.Lifecycle, cfg app.AppConfig) (Client, error) {
	switch cfg.Chain.Kind {
	case app.ChainMemory:
		return provideMemory(lc, cfg), nil
	case app.ChainEth:
		return provideEth(lc, cfg.Chain)
	default:
		return nil, fmt.Errorf("unknown chain kind %q", cfg.Chain.Kind)
	}
}

func provideEth(lc fx.Lifecycle, cfg app.ChainConfig) (Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eth, err := chain.DialEth(ctx, cfg.Endpoint, chain.EthConfig{
		Contract:            cfg.Contract,
		ChainID:             cfg.ChainID,
		PrivateKey:          cfg.PrivateKey,
		ReceiptPollInterval: cfg.ReceiptPollInterval,
		ReceiptTimeout:      cfg.ReceiptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("providing eth client: %w", err)
	}
	if cfg.PrivateKey == nil {
		log.Warnw("no private key configured, proofs cannot be submitted", "endpoint", cfg.Endpoint)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return eth.Close()
		},
	})
	return eth, nil
}

func provideMemory(lc fx.Lifecycle, cfg app.AppConfig) Client {
	mem := chain.NewMemory(cfg.Chain.StartBlock)
	for _, d := range cfg.Deals.Inline {
		mem.AddDeal(d)
	}
	if cfg.Chain.BlockTime <= 0 {
		return mem
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				produceBlocks(ctx, mem, clock.New(), cfg.Chain)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return nil
		},
	})
	return mem
}

func produceBlocks(ctx context.Context, mem *chain.Memory, clk clock.Clock, cfg app.ChainConfig) {
	ticker := clk.Ticker(cfg.BlockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			head := mem.Advance(1)
			log.Debugw("produced block", "head", head)
		case <-ctx.Done():
			return
		}
	}
}
