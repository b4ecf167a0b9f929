package challenge_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

func hashOf(n uint64) types.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

func TestNumChunks(t *testing.T) {
	tests := []struct {
		size     uint64
		expected uint64
	}{
		{size: 1, expected: 1},
		{size: 1024, expected: 1},
		{size: 1025, expected: 2},
		{size: 2048, expected: 2},
		{size: 2049, expected: 3},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, challenge.NumChunks(tt.size), "size %d", tt.size)
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		hash     types.Hash
		size     uint64
		offset   uint64
		expected uint64
	}{
		{name: "hash 0", hash: hashOf(0), size: 2049, offset: 0, expected: 1024},
		{name: "hash 1", hash: hashOf(1), size: 2049, offset: 1024, expected: 1024},
		{name: "hash 2 hits short final chunk", hash: hashOf(2), size: 2049, offset: 2048, expected: 1},
		{name: "hash 379", hash: hashOf(379), size: 2049, offset: 1024, expected: 1024},
		{name: "single short chunk", hash: hashOf(12345), size: 10, offset: 0, expected: 10},
		{name: "exact multiple", hash: hashOf(3), size: 4096, offset: 3072, expected: 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			offset, size, err := challenge.Range(tt.hash, tt.size)
			require.NoError(t, err)
			require.Equal(t, tt.offset, offset)
			require.Equal(t, tt.expected, size)
		})
	}
}

func TestDeriveUsesFullWidthHash(t *testing.T) {
	// 2^255 mod 3 == 2, while the low 64 bits alone are zero
	h := common.Hash(new(uint256.Int).Lsh(uint256.NewInt(1), 255).Bytes32())
	c, err := challenge.Derive(h, 2049)
	require.NoError(t, err)
	require.Equal(t, uint64(2), c.ChunkIndex)

	all := common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	// (2^256 - 1) mod 7 == 1
	c, err = challenge.Derive(all, 7*1024)
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.ChunkIndex)
}

func TestDeriveDeterministic(t *testing.T) {
	h := common.HexToHash("0x8c3f1822e7b1a2d4b1a7f3e9c1d0a5f2e3b4c5d6e7f8091a2b3c4d5e6f708192")
	a, err := challenge.Derive(h, 1<<30)
	require.NoError(t, err)
	b, err := challenge.Derive(h, 1<<30)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Less(t, a.Offset, uint64(1<<30))
}

func TestDeriveEmptyContent(t *testing.T) {
	_, err := challenge.Derive(hashOf(1), 0)
	require.ErrorIs(t, err, types.ErrEmptyContent)
}
