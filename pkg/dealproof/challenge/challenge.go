// Package challenge turns an unpredictable on-chain value into the chunk of
// a file a prover must produce.
package challenge

import (
	"github.com/holiman/uint256"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// NumChunks returns ceil(fileSize / ChunkSize).
func NumChunks(fileSize uint64) uint64 {
	if fileSize == 0 {
		return 0
	}
	return (fileSize-1)/types.ChunkSize + 1
}

// Derive selects the chunk challenged by blockHash in a file of fileSize
// bytes. The hash is reduced as a full 256-bit big-endian integer modulo the
// chunk count. The final chunk may be shorter than ChunkSize.
func Derive(blockHash types.Hash, fileSize uint64) (types.Challenge, error) {
	if fileSize == 0 {
		return types.Challenge{}, types.ErrEmptyContent
	}
	n := NumChunks(fileSize)
	h := new(uint256.Int).SetBytes(blockHash[:])
	idx := new(uint256.Int).Mod(h, uint256.NewInt(n)).Uint64()

	offset := idx * types.ChunkSize
	return types.Challenge{
		ChunkIndex: idx,
		Offset:     offset,
		Size:       min(types.ChunkSize, fileSize-offset),
	}, nil
}

// Range returns the challenged [offset, offset+size) as a pair.
func Range(blockHash types.Hash, fileSize uint64) (uint64, uint64, error) {
	c, err := Derive(blockHash, fileSize)
	if err != nil {
		return 0, 0, err
	}
	return c.Offset, c.Size, nil
}
