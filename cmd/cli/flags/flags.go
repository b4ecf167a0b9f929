package flags

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/storacha/proofbuddy/pkg/config"
)

// EnvPrefix prefixes the environment variable of every configuration key.
const EnvPrefix = "PROOFBUDDY"

type FlagBinding struct {
	FlagName string
	ViperKey config.Key
	EnvVar   string // optional, an alias for the derived variable
}

// EnvName returns the environment variable viper reads key from.
func EnvName(key config.Key) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(string(key), ".", "_"))
}

func AddAndBindFlags(flags *pflag.FlagSet, bindings []FlagBinding) error {
	for _, b := range bindings {
		if err := viper.BindPFlag(string(b.ViperKey), flags.Lookup(b.FlagName)); err != nil {
			return err
		}
		if b.EnvVar != "" {
			if err := viper.BindEnv(string(b.ViperKey), EnvName(b.ViperKey), b.EnvVar); err != nil {
				return err
			}
		}
	}

	return nil
}

// BindEnv makes keys that have neither a default nor a flag readable from
// the environment.
func BindEnv(keys ...config.Key) error {
	for _, k := range keys {
		if err := viper.BindEnv(string(k), EnvName(k)); err != nil {
			return err
		}
	}
	return nil
}

func SetupChainFlags(fs *pflag.FlagSet) error {
	fs.String(
		"chain",
		"eth",
		"Chain to prove against: eth or memory",
	)
	fs.String(
		"eth-endpoint",
		"",
		"JSON-RPC endpoint of the chain holding the deal contract",
	)
	fs.Int64(
		"chain-id",
		0,
		"Chain id used to sign proof submissions",
	)
	fs.String(
		"contract-address",
		"",
		"Address of the deal contract",
	)
	fs.String(
		"private-key",
		"",
		"Hex encoded key that signs proof submissions. Prefer setting PROOFBUDDY_PRIVATE_KEY",
	)

	bindings := []FlagBinding{
		{"chain", config.ChainKind, ""},
		{"eth-endpoint", config.ChainEndpoint, ""},
		{"chain-id", config.ChainID, ""},
		{"contract-address", config.ChainContract, ""},
		{"private-key", config.ChainPrivateKey, "PROOFBUDDY_PRIVATE_KEY"},
	}

	return AddAndBindFlags(fs, bindings)
}

func SetupContentFlags(fs *pflag.FlagSet) error {
	fs.String(
		"store",
		"leveldb",
		"Where content and proofs are kept: memory, leveldb or minio",
	)
	fs.String(
		"data-dir",
		"",
		"Data directory of the leveldb store",
	)
	fs.String(
		"minio-endpoint",
		"",
		"Endpoint of the minio store",
	)
	fs.String(
		"minio-bucket",
		"",
		"Bucket of the minio store",
	)

	bindings := []FlagBinding{
		{"store", config.ContentStore, ""},
		{"data-dir", config.ContentDataDir, ""},
		{"minio-endpoint", config.MinioEndpoint, ""},
		{"minio-bucket", config.MinioBucket, ""},
	}
	if err := AddAndBindFlags(fs, bindings); err != nil {
		return err
	}
	// credentials are only read from the environment or the config file
	return BindEnv(config.MinioAccessKey, config.MinioSecretKey, config.MinioInsecure)
}

func SetupProverFlags(fs *pflag.FlagSet) error {
	fs.IntSlice(
		"deal",
		nil,
		"Id of a deal to prove, looked up on chain. Pass multiple times for multiple deals.",
	)
	fs.Duration(
		"poll-interval",
		0,
		"How often the chain head is polled",
	)
	fs.Int(
		"max-concurrent",
		0,
		"Maximum number of deals proven at once",
	)

	bindings := []FlagBinding{
		{"deal", config.DealIDs, ""},
		{"poll-interval", config.ProverPollInterval, ""},
		{"max-concurrent", config.ProverMaxConcurrent, ""},
	}
	if err := AddAndBindFlags(fs, bindings); err != nil {
		return err
	}
	return BindEnv(config.TelemetryEndpoint)
}
