package config

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// DealConfig describes a deal without consulting the chain. Root is the
// optional hex encoded blake3 hash of the file.
type DealConfig struct {
	ID        uint64 `mapstructure:"id" validate:"required" toml:"id"`
	Content   string `mapstructure:"content" validate:"required" toml:"content"`
	FileSize  uint64 `mapstructure:"file_size" validate:"required" toml:"file_size"`
	Start     uint64 `mapstructure:"start" toml:"start"`
	Length    uint64 `mapstructure:"length" validate:"required" toml:"length"`
	Frequency uint64 `mapstructure:"frequency" validate:"required" toml:"frequency"`
	Root      string `mapstructure:"root" toml:"root,omitempty"`
}

func (d DealConfig) ToDeal() (types.Deal, error) {
	id, err := cid.Decode(d.Content)
	if err != nil {
		return types.Deal{}, fmt.Errorf("parsing content id %q: %w", d.Content, err)
	}
	deal := types.Deal{
		ID: types.DealID(d.ID),
		Timeline: types.DealTimeline{
			StartBlock:             types.BlockNum(d.Start),
			LengthInBlocks:         types.BlockNum(d.Length),
			ProofFrequencyInBlocks: types.BlockNum(d.Frequency),
		},
		Content:  id,
		FileSize: d.FileSize,
		Status:   types.DealActive,
	}
	if err := deal.Timeline.Validate(); err != nil {
		return types.Deal{}, err
	}
	if d.Root != "" {
		if deal.Root, err = types.ParseRootDigest(d.Root); err != nil {
			return types.Deal{}, fmt.Errorf("parsing root: %w", err)
		}
	}
	return deal, nil
}

type DealsConfig struct {
	// IDs are deals whose terms are read from the chain.
	IDs    []uint64     `mapstructure:"ids" toml:"ids,omitempty"`
	Inline []DealConfig `mapstructure:"inline" validate:"dive" toml:"inline,omitempty"`
}

func (d DealsConfig) Validate() error {
	return validateConfig(d)
}

func (d DealsConfig) ToAppConfig() (app.DealsConfig, error) {
	var out app.DealsConfig
	seen := make(map[uint64]struct{}, len(d.IDs)+len(d.Inline))
	for _, id := range d.IDs {
		if _, ok := seen[id]; ok {
			return app.DealsConfig{}, fmt.Errorf("deal %d is listed twice", id)
		}
		seen[id] = struct{}{}
		out.IDs = append(out.IDs, types.DealID(id))
	}
	for _, dc := range d.Inline {
		if _, ok := seen[dc.ID]; ok {
			return app.DealsConfig{}, fmt.Errorf("deal %d is listed twice", dc.ID)
		}
		seen[dc.ID] = struct{}{}
		deal, err := dc.ToDeal()
		if err != nil {
			return app.DealsConfig{}, fmt.Errorf("deal %d: %w", dc.ID, err)
		}
		out.Inline = append(out.Inline, deal)
	}
	return out, nil
}
