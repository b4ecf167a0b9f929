// Package outboard builds and queries BLAKE3 Bao trees stored apart from the
// content they authenticate.
//
// Content is hashed in ChunkSize byte chunks exactly as BLAKE3 does, so the
// root of a tree is the BLAKE3-256 hash of the content. The encoded tree is
// the standard Bao outboard encoding: an 8 byte little-endian content length
// followed by every parent node in pre-order, each node being the 32 byte
// chaining values of its left and right children.
//
// A slice authenticates a contiguous range of chunks. It is the Bao slice
// encoding: the header followed by a pre-order walk that emits each visited
// parent node and, in place of each visited leaf, the chunk bytes.
package outboard

import (
	"encoding/binary"
	"math/bits"

	"lukechampine.com/blake3/bao"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

const (
	ChunkSize  = types.ChunkSize
	HeaderSize = 8
	ParentSize = 64
	// BlockSize is how much content incremental builds read per call.
	BlockSize = 256000

	// group selects standard Bao with one chunk per leaf.
	group = 0
)

// NumChunks returns the number of leaves for content of the given length.
func NumChunks(contentLen uint64) uint64 {
	if contentLen == 0 {
		return 1
	}
	return (contentLen-1)/ChunkSize + 1
}

// EncodedSize returns the size of the encoded tree for content of the given
// length.
func EncodedSize(contentLen uint64) uint64 {
	return uint64(bao.EncodedSize(int(contentLen), group, true))
}

func decodeHeader(hdr []byte) uint64 {
	return binary.LittleEndian.Uint64(hdr[:HeaderSize])
}

// span is the inclusive range of chunk indices a query touches.
type span struct {
	first, last uint64
}

// bounds returns the byte range of the chunks in s, clamped to contentLen.
func (s span) bounds(contentLen uint64) (uint64, uint64) {
	return s.first * ChunkSize, min((s.last+1)*ChunkSize, contentLen)
}

// querySpan validates a byte range against content of contentLen bytes and
// returns the chunks it covers along with the clamped end offset. Queries
// against empty content always resolve to the single empty chunk.
func querySpan(contentLen, offset, size uint64) (span, uint64, error) {
	if contentLen == 0 {
		if offset != 0 {
			return span{}, 0, types.NewErrorf(types.KindInvalidInput, "offset %d beyond empty content", offset)
		}
		return span{}, 0, nil
	}
	if size == 0 {
		return span{}, 0, types.NewError(types.KindInvalidInput, "slice size must be positive")
	}
	if offset >= contentLen {
		return span{}, 0, types.NewErrorf(types.KindInvalidInput, "offset %d beyond content length %d", offset, contentLen)
	}
	end, carry := bits.Add64(offset, size, 0)
	if carry != 0 || end > contentLen {
		end = contentLen
	}
	return span{first: offset / ChunkSize, last: (end - 1) / ChunkSize}, end, nil
}
