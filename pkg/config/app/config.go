package app

import (
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// AppConfig is the validated, typed configuration of the prover.
type AppConfig struct {
	Chain     ChainConfig
	Content   ContentConfig
	Prover    ProverConfig
	Deals     DealsConfig
	Telemetry TelemetryConfig
}

type ChainKind string

const (
	ChainEth    ChainKind = "eth"
	ChainMemory ChainKind = "memory"
)

type ChainConfig struct {
	Kind     ChainKind
	Endpoint string
	ChainID  *big.Int
	Contract common.Address
	// PrivateKey signs proof submissions. Nil means read only.
	PrivateKey          *ecdsa.PrivateKey
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	// StartBlock is the initial head of a memory chain.
	StartBlock types.BlockNum
	// BlockTime is how often a memory chain produces a block.
	BlockTime time.Duration
}

type StoreKind string

const (
	StoreMemory  StoreKind = "memory"
	StoreLevelDB StoreKind = "leveldb"
	StoreMinio   StoreKind = "minio"
)

type ContentConfig struct {
	Store   StoreKind
	DataDir string
	Minio   MinioConfig
}

type MinioConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
}

type ProverConfig struct {
	PollInterval    time.Duration
	StallTimeout    time.Duration
	MaxConcurrent   int
	CallTimeout     time.Duration
	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMaxElapsed time.Duration
	TreeCacheSize   int
	// Audit keeps a copy of every accepted proof.
	Audit bool
}

type DealsConfig struct {
	// IDs are looked up on chain.
	IDs []types.DealID
	// Inline deals are fully described by configuration.
	Inline []types.Deal
}

type TelemetryConfig struct {
	Endpoint        string
	Insecure        bool
	Headers         map[string]string
	PublishInterval time.Duration
	Environment     string
}
