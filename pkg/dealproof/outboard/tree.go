package outboard

import (
	"bytes"
	"io"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// Tree is an encoded outboard tree together with its root digest. It is
// read-only once built and may be shared between goroutines.
type Tree struct {
	encoded []byte
	root    types.RootDigest
}

// NewTree wraps a previously encoded tree, checking its length against
// the content length in its header.
func NewTree(encoded []byte, root types.RootDigest) (*Tree, error) {
	if len(encoded) < HeaderSize {
		return nil, types.NewErrorf(types.KindInvalidInput, "encoded tree too short: %d bytes", len(encoded))
	}
	if want := EncodedSize(decodeHeader(encoded)); uint64(len(encoded)) != want {
		return nil, types.NewErrorf(types.KindInvalidInput, "encoded tree is %d bytes, expected %d", len(encoded), want)
	}
	return &Tree{encoded: encoded, root: root}, nil
}

func (t *Tree) Root() types.RootDigest {
	return t.root
}

// Bytes returns the encoded tree. The returned slice must not be modified.
func (t *Tree) Bytes() []byte {
	return t.encoded
}

func (t *Tree) ContentLength() uint64 {
	return decodeHeader(t.encoded)
}

func (t *Tree) NumChunks() uint64 {
	return NumChunks(t.ContentLength())
}

// Reader returns a fresh seekable reader over the encoded tree.
func (t *Tree) Reader() io.ReadSeeker {
	return bytes.NewReader(t.encoded)
}

// Slice extracts the proof for [offset, offset+size) from content.
func (t *Tree) Slice(content io.ReadSeeker, offset, size uint64) (types.ProofArtifact, error) {
	return ExtractSlice(content, t.Reader(), offset, size)
}
