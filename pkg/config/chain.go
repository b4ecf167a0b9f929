package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

type ChainConfig struct {
	Kind     string `mapstructure:"kind" validate:"required,oneof=eth memory" toml:"kind"`
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Kind eth" toml:"endpoint,omitempty"`
	ChainID  int64  `mapstructure:"chain_id" validate:"required_if=Kind eth,gte=0" toml:"chain_id,omitempty"`
	Contract string `mapstructure:"contract" validate:"required_if=Kind eth" toml:"contract,omitempty"`
	// PrivateKey is a hex encoded secp256k1 key. Without it the prover can
	// follow the chain but not submit proofs.
	PrivateKey          string        `mapstructure:"private_key" toml:"private_key,omitempty"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval" validate:"gte=0" toml:"receipt_poll_interval,omitempty"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout" validate:"gte=0" toml:"receipt_timeout,omitempty"`
	StartBlock          uint64        `mapstructure:"start_block" toml:"start_block,omitempty"`
	BlockTime           time.Duration `mapstructure:"block_time" validate:"gte=0" toml:"block_time,omitempty"`
}

func (c ChainConfig) Validate() error {
	return validateConfig(c)
}

func (c ChainConfig) ToAppConfig() (app.ChainConfig, error) {
	out := app.ChainConfig{
		Kind:                app.ChainKind(c.Kind),
		Endpoint:            c.Endpoint,
		ReceiptPollInterval: c.ReceiptPollInterval,
		ReceiptTimeout:      c.ReceiptTimeout,
		StartBlock:          types.BlockNum(c.StartBlock),
		BlockTime:           c.BlockTime,
	}
	if out.Kind == app.ChainMemory {
		return out, nil
	}

	if !common.IsHexAddress(c.Contract) {
		return app.ChainConfig{}, fmt.Errorf("invalid contract address %q", c.Contract)
	}
	out.Contract = common.HexToAddress(c.Contract)
	out.ChainID = big.NewInt(c.ChainID)

	if c.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
		if err != nil {
			return app.ChainConfig{}, fmt.Errorf("parsing private key: %w", err)
		}
		out.PrivateKey = key
	}
	return out, nil
}
