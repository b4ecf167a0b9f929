package serve

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/storacha/proofbuddy/cmd/cli/flags"
	"github.com/storacha/proofbuddy/pkg/build"
	"github.com/storacha/proofbuddy/pkg/config"
	"github.com/storacha/proofbuddy/pkg/config/app"
	fxapp "github.com/storacha/proofbuddy/pkg/fx/app"
)

var log = logging.Logger("cmd/serve")

// ShutdownTimeout bounds how long in flight proofs get to finish on stop.
const ShutdownTimeout = time.Minute

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Prove the configured deals until interrupted",
	Long: `Follow the chain head and, for every configured deal, derive each window's
challenge, prove the challenged bytes and submit the proof before the window
expires.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	cobra.CheckErr(flags.SetupChainFlags(Cmd.Flags()))
	cobra.CheckErr(flags.SetupContentFlags(Cmd.Flags()))
	cobra.CheckErr(flags.SetupProverFlags(Cmd.Flags()))
}

func serve(cmd *cobra.Command, _ []string) error {
	userCfg, err := config.Load[config.Full]()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appCfg, err := userCfg.ToAppConfig()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if len(appCfg.Deals.IDs)+len(appCfg.Deals.Inline) == 0 {
		log.Warn("no deals configured, nothing will be proven")
	}

	node := fx.New(
		// if a panic occurs during operation, recover from it and exit (somewhat) gracefully.
		fx.RecoverFromPanics(),

		// provide fx with our logger for its events logged at debug level.
		// any fx errors will still be logged at the error level.
		fx.WithLogger(func() fxevent.Logger {
			el := &fxevent.ZapLogger{Logger: log.Desugar()}
			el.UseLogLevel(zapcore.DebugLevel)
			return el
		}),

		fx.StopTimeout(ShutdownTimeout),

		fxapp.Modules(appCfg),

		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					printStartup(cmd, appCfg)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Infof("Shutting down proofbuddy...this may take up to %s", ShutdownTimeout)
					return nil
				},
			})
		}),
	)

	// an error here means a missing dependency or a failed constructor
	if err := node.Err(); err != nil {
		return fmt.Errorf("building proofbuddy: %w", err)
	}

	// run the app, when an interrupt signal is sent to the process, this method ends.
	// any errors encountered during shutdown will be exposed via logs
	node.Run()

	return nil
}

func printStartup(cmd *cobra.Command, cfg app.AppConfig) {
	cmd.Printf("proofbuddy %s\n", build.Version)
	switch cfg.Chain.Kind {
	case app.ChainEth:
		cmd.Printf("Chain: %s (chain id %s, contract %s)\n", cfg.Chain.Endpoint, cfg.Chain.ChainID, cfg.Chain.Contract)
	default:
		cmd.Printf("Chain: in memory, starting at block %s\n", cfg.Chain.StartBlock)
	}
	cmd.Printf("Content store: %s\n", cfg.Content.Store)
	cmd.Printf("Deals: %d on chain, %d inline\n", len(cfg.Deals.IDs), len(cfg.Deals.Inline))
}
