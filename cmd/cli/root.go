package cli

import (
	"context"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/storacha/proofbuddy/cmd/cli/config"
	"github.com/storacha/proofbuddy/cmd/cli/flags"
	"github.com/storacha/proofbuddy/cmd/cli/serve"
	"github.com/storacha/proofbuddy/pkg/config"
)

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

var log = logging.Logger("cmd")

const shortDescription = `
Proofbuddy proves possession of stored files to a deal contract
`

const longDescription = `
Proofbuddy - verifiable storage proofs
For every proof window of a deal it derives a challenge from the chain, builds
a blake3 slice proof of the challenged bytes and submits it. The offline
commands build outboard trees and create and check proofs by hand.
`

var (
	cfgFile  string
	logLevel string
	rootCmd  = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "proofbuddy",
		Short:        shortDescription,
		Long:         longDescription,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level")

	// register all commands and their subcommands
	cmd.AddCommand(serve.Cmd)
	cmd.AddCommand(configcmd.Cmd)
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChallengeCmd())
	cmd.AddCommand(newOutboardCmd())
	cmd.AddCommand(newProveCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newFingerprintCmd())
	return cmd
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)
}

func initConfig() {
	config.SetDefaults()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix(flags.EnvPrefix)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	}
}

func initLogging() {
	if logLevel != "" {
		ll, err := logging.LevelFromString(logLevel)
		cobra.CheckErr(err)
		logging.SetAllLoggers(ll)
	} else {
		logging.SetLogLevel("config", "error")
		logging.SetLogLevel("cmd", "info")
		logging.SetLogLevel("cmd/serve", "info")
		logging.SetLogLevel("dealproof/coordinator", "info")
		logging.SetLogLevel("dealproof/prover", "info")
		logging.SetLogLevel("dealproof/chain", "info")
		logging.SetLogLevel("dealproof/chainsched", "warn")
		logging.SetLogLevel("dealproof/content", "warn")
		logging.SetLogLevel("dealproof/outboard", "warn")
		logging.SetLogLevel("dealproof/source", "warn")
		logging.SetLogLevel("dealproof/proofstore", "warn")
		logging.SetLogLevel("objectstore/minio", "warn")
		logging.SetLogLevel("fx/chain", "info")
		logging.SetLogLevel("fx/prover", "info")
		logging.SetLogLevel("fx/telemetry", "info")
	}
}
