package source

import (
	"io"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var _ io.ReadSeeker = (*Window)(nil)

// Window presents bytes that were already fetched for the absolute range
// [base, base+length) as a forward-only stream positioned at base. It only
// accepts seeks that land on its current position, which keeps chunk
// relative offset accounting intact for readers that seek before each read.
type Window struct {
	r      io.Reader
	base   uint64
	length uint64
	read   uint64
}

func NewWindow(r io.Reader, base, length uint64) *Window {
	return &Window{r: r, base: base, length: length}
}

func (w *Window) Read(p []byte) (int, error) {
	if w.read >= w.length {
		return 0, io.EOF
	}
	if remaining := w.length - w.read; uint64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := w.r.Read(p)
	w.read += uint64(n)
	if err == io.EOF && w.read < w.length {
		return n, types.NewErrorf(types.KindShortRead, "window ended after %d of %d bytes", w.read, w.length)
	}
	return n, err
}

func (w *Window) Seek(offset int64, whence int) (int64, error) {
	pos := int64(w.base + w.read)
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = pos + offset
	case io.SeekEnd:
		abs = int64(w.base+w.length) + offset
	default:
		return pos, types.NewErrorf(types.KindInvalidInput, "invalid whence %d", whence)
	}
	if abs < 0 {
		return pos, types.ErrInvalidSeek
	}
	if abs != pos {
		return pos, types.NewErrorf(types.KindInvalidSeek, "window is forward-only, cannot move from %d to %d", pos, abs)
	}
	return pos, nil
}

// BytesRead returns how many bytes have been consumed from the window.
func (w *Window) BytesRead() uint64 {
	return w.read
}
