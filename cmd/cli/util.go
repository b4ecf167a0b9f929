package cli

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

func parseBlockHash(s string) (types.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return types.Hash{}, fmt.Errorf("parsing block hash: %w", err)
	}
	if len(b) != len(types.Hash{}) {
		return types.Hash{}, fmt.Errorf("block hash must be %d bytes, got %d", len(types.Hash{}), len(b))
	}
	return common.BytesToHash(b), nil
}

// challengeRange resolves the byte range named by the --block-hash or the
// --offset and --size flags of cmd.
func challengeRange(cmd *cobra.Command, fileSize uint64) (types.Challenge, error) {
	fs := cmd.Flags()
	if fs.Changed("block-hash") {
		s, _ := fs.GetString("block-hash")
		hash, err := parseBlockHash(s)
		if err != nil {
			return types.Challenge{}, err
		}
		return challenge.Derive(hash, fileSize)
	}
	if !fs.Changed("offset") || !fs.Changed("size") {
		return types.Challenge{}, fmt.Errorf("either --block-hash or both --offset and --size are required")
	}
	offset, _ := fs.GetUint64("offset")
	size, _ := fs.GetUint64("size")
	return types.Challenge{ChunkIndex: offset / types.ChunkSize, Offset: offset, Size: size}, nil
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("block-hash", "", "Hash of the window's target block, the challenge is derived from it")
	cmd.Flags().Uint64("offset", 0, "Start of the byte range, instead of --block-hash")
	cmd.Flags().Uint64("size", 0, "Length of the byte range, instead of --block-hash")
	cmd.MarkFlagsMutuallyExclusive("block-hash", "offset")
	cmd.MarkFlagsMutuallyExclusive("block-hash", "size")
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
