package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChunkSize is the number of content bytes covered by one leaf of the
// outboard tree and by one challenge.
const ChunkSize uint64 = 1024

// Hash is a 256-bit chain value, e.g. a block hash.
type Hash = common.Hash

// RootDigest is the 32-byte root of an outboard tree.
type RootDigest [32]byte

func (r RootDigest) String() string {
	return hex.EncodeToString(r[:])
}

func (r RootDigest) IsZero() bool {
	return r == RootDigest{}
}

// ParseRootDigest parses a hex encoded digest, with or without a 0x prefix.
func ParseRootDigest(s string) (RootDigest, error) {
	var out RootDigest
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, WrapError(KindInvalidInput, "decoding root digest", err)
	}
	if len(b) != len(out) {
		return out, NewErrorf(KindInvalidInput, "root digest must be %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Challenge is the byte range a prover must prove possession of for a window.
type Challenge struct {
	ChunkIndex uint64
	Offset     uint64
	Size       uint64
}

func (c Challenge) String() string {
	return fmt.Sprintf("chunk %d [%d, %d)", c.ChunkIndex, c.Offset, c.Offset+c.Size)
}

// ProofArtifact is the encoded slice proof answering a Challenge.
type ProofArtifact []byte

// Proof is what gets submitted on-chain for one window.
type Proof struct {
	DealID      DealID
	Window      uint64
	TargetBlock BlockNum
	Challenge   Challenge
	Data        ProofArtifact
}
