package outboard

import (
	"errors"
	"fmt"
	"io"

	logging "github.com/ipfs/go-log/v2"
	pool "github.com/libp2p/go-buffer-pool"
	"lukechampine.com/blake3/bao"

	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var log = logging.Logger("dealproof/outboard")

// BuildBulk builds the tree for content that is already in memory.
func BuildBulk(data []byte) (*Tree, error) {
	encoded, root := bao.EncodeBuf(data, group, true)
	return &Tree{encoded: encoded, root: types.RootDigest(root)}, nil
}

// BuildIncremental builds the tree for size bytes read from r in BlockSize
// blocks, holding at most one block of content in memory. Content ending
// early is an ErrShortRead error and content running past size is an
// ErrInvalidInput error.
func BuildIncremental(r io.Reader, size uint64) (*Tree, error) {
	br := &blockReader{r: r, buf: pool.Get(BlockSize)}
	defer pool.Put(br.buf)

	dst := &treeBuffer{buf: make([]byte, EncodedSize(size))}
	root, err := bao.Encode(dst, br, int64(size), group, true)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, types.NewErrorf(types.KindShortRead, "content ended after %d of %d bytes", br.total, size)
		}
		return nil, fmt.Errorf("reading content block %d: %w", br.blocks, err)
	}
	var extra [1]byte
	if n, _ := br.Read(extra[:]); n > 0 {
		return nil, types.NewErrorf(types.KindInvalidInput, "content is longer than %d bytes", size)
	}
	tree := &Tree{encoded: dst.buf, root: types.RootDigest(root)}
	log.Debugw("built outboard tree", "length", size, "blocks", br.blocks, "root", tree.Root())
	return tree, nil
}

// Build builds the tree for src, streaming it through a private cursor.
func Build(src source.Source) (*Tree, error) {
	return BuildIncremental(source.NewCursor(src), src.Size())
}

// blockReader refills from r one full block at a time and serves the
// encoder's smaller reads out of the current block.
type blockReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
	err     error
	blocks  int
	total   uint64
}

func (b *blockReader) Read(p []byte) (int, error) {
	if len(b.pending) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		n, err := io.ReadFull(b.r, b.buf)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		b.err = err
		if n == 0 {
			return 0, err
		}
		b.blocks++
		b.pending = b.buf[:n]
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	b.total += uint64(n)
	return n, nil
}

// treeBuffer is the pre-sized destination the encoder writes nodes into out
// of order.
type treeBuffer struct {
	buf []byte
}

func (t *treeBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(t.buf)) {
		return 0, types.NewErrorf(types.KindInternal, "tree write of %d bytes at %d exceeds %d", len(p), off, len(t.buf))
	}
	return copy(t.buf[off:], p), nil
}
