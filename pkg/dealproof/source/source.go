// Package source provides uniform random access over content that lives in
// a local file or behind a range-capable content network.
//
// A Source is stateless: every read names its offset, so one Source may be
// shared by any number of goroutines. Cursor layers io.Reader/io.Seeker
// cursor state on top of a Source and must not be shared.
package source

import (
	"io"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// Source is content of a fixed, known size supporting positional reads.
type Source interface {
	io.ReaderAt
	Size() uint64
}

// Bytes is an in-memory Source.
type Bytes []byte

func (b Bytes) Size() uint64 {
	return uint64(len(b))
}

func (b Bytes) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.ErrInvalidSeek
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadChunk reads exactly size bytes at offset from src, returning an
// ErrShortRead error if the source ends first.
func ReadChunk(src io.ReaderAt, offset, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := src.ReadAt(buf, int64(offset))
	if uint64(n) == size {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		return nil, types.NewErrorf(types.KindShortRead, "read %d of %d bytes at offset %d", n, size, offset)
	}
	return nil, err
}
