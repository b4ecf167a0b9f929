package source

import (
	"io"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var _ io.ReadSeeker = (*Cursor)(nil)
var _ io.ReaderAt = (*Cursor)(nil)

// Cursor gives a Source read/seek semantics. Seeking never performs I/O; the
// fetch happens on the next Read.
type Cursor struct {
	src Source
	off int64
}

func NewCursor(src Source) *Cursor {
	return &Cursor{src: src}
}

func (c *Cursor) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.src.ReadAt(p, c.off)
	c.off += int64(n)
	if err == io.EOF && n > 0 {
		// report EOF on the following call, as io.Reader callers expect
		err = nil
	}
	return n, err
}

func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.off + offset
	case io.SeekEnd:
		abs = int64(c.src.Size()) + offset
	default:
		return c.off, types.NewErrorf(types.KindInvalidInput, "invalid whence %d", whence)
	}
	if abs < 0 {
		return c.off, types.ErrInvalidSeek
	}
	c.off = abs
	return abs, nil
}

// ReadAt reads at an explicit offset without touching the cursor.
func (c *Cursor) ReadAt(p []byte, off int64) (int, error) {
	return c.src.ReadAt(p, off)
}

func (c *Cursor) Size() uint64 {
	return c.src.Size()
}

// Position returns the current cursor offset.
func (c *Cursor) Position() int64 {
	return c.off
}
