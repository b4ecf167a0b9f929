package config

import (
	"time"

	"github.com/spf13/viper"
)

// Key is a configuration key path used with Viper.
type Key string

const (
	ChainKind                Key = "chain.kind"
	ChainEndpoint            Key = "chain.endpoint"
	ChainID                  Key = "chain.chain_id"
	ChainContract            Key = "chain.contract"
	ChainPrivateKey          Key = "chain.private_key"
	ChainReceiptPollInterval Key = "chain.receipt_poll_interval"
	ChainReceiptTimeout      Key = "chain.receipt_timeout"
	ChainBlockTime           Key = "chain.block_time"
)

const (
	ContentStore   Key = "content.store"
	ContentDataDir Key = "content.data_dir"
	MinioEndpoint  Key = "content.minio.endpoint"
	MinioBucket    Key = "content.minio.bucket"
	MinioAccessKey Key = "content.minio.access_key_id"
	MinioSecretKey Key = "content.minio.secret_access_key"
	MinioInsecure  Key = "content.minio.insecure"
)

const (
	ProverPollInterval    Key = "prover.poll_interval"
	ProverStallTimeout    Key = "prover.stall_timeout"
	ProverMaxConcurrent   Key = "prover.max_concurrent"
	ProverCallTimeout     Key = "prover.call_timeout"
	ProverRetryInitial    Key = "prover.retry.initial"
	ProverRetryMax        Key = "prover.retry.max"
	ProverRetryMaxElapsed Key = "prover.retry.max_elapsed"
	ProverTreeCacheSize   Key = "prover.tree_cache_size"
	ProverAudit           Key = "prover.audit"
)

const (
	TelemetryEndpoint        Key = "telemetry.endpoint"
	TelemetryInsecure        Key = "telemetry.insecure"
	TelemetryPublishInterval Key = "telemetry.publish_interval"
	TelemetryEnvironment     Key = "telemetry.environment"
)

const (
	DealIDs    Key = "deals.ids"
	DealInline Key = "deals.inline"
)

var defaultValues = map[Key]any{
	ChainKind:                "eth",
	ChainReceiptPollInterval: 2 * time.Second,
	ChainReceiptTimeout:      2 * time.Minute,
	ChainBlockTime:           6 * time.Second,

	ContentStore: "leveldb",

	ProverPollInterval:  6 * time.Second,
	ProverStallTimeout:  5 * time.Minute,
	ProverMaxConcurrent: 8,
	ProverCallTimeout:   time.Minute,
	ProverRetryInitial:  500 * time.Millisecond,
	ProverRetryMax:      30 * time.Second,
	ProverTreeCacheSize: 64,
	ProverAudit:         true,

	TelemetryPublishInterval: 30 * time.Second,
}

// SetDefaults sets all viper defaults for configuration.
// Called before viper.Unmarshal() to ensure defaults are available.
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

func SetDefaultsOn(v *viper.Viper) {
	for k, val := range defaultValues {
		v.SetDefault(string(k), val)
	}
}

// Default returns the configuration produced by the defaults alone, with the
// fields a deployment must fill in left empty.
func Default() Full {
	return Full{
		Chain: ChainConfig{
			Kind:                defaultValues[ChainKind].(string),
			Endpoint:            "http://127.0.0.1:8545",
			ReceiptPollInterval: defaultValues[ChainReceiptPollInterval].(time.Duration),
			ReceiptTimeout:      defaultValues[ChainReceiptTimeout].(time.Duration),
			BlockTime:           defaultValues[ChainBlockTime].(time.Duration),
		},
		Content: ContentConfig{
			Store:   defaultValues[ContentStore].(string),
			DataDir: "data",
		},
		Prover: ProverConfig{
			PollInterval:  defaultValues[ProverPollInterval].(time.Duration),
			StallTimeout:  defaultValues[ProverStallTimeout].(time.Duration),
			MaxConcurrent: defaultValues[ProverMaxConcurrent].(int),
			CallTimeout:   defaultValues[ProverCallTimeout].(time.Duration),
			Retry: RetryConfig{
				Initial: defaultValues[ProverRetryInitial].(time.Duration),
				Max:     defaultValues[ProverRetryMax].(time.Duration),
			},
			TreeCacheSize: defaultValues[ProverTreeCacheSize].(int),
			Audit:         defaultValues[ProverAudit].(bool),
		},
		Telemetry: TelemetryConfig{
			PublishInterval: defaultValues[TelemetryPublishInterval].(time.Duration),
		},
	}
}
