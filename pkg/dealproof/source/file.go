package source

import (
	"fmt"
	"io"
	"os"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var _ Source = (*File)(nil)

// File is a Source backed by a local file. Its size is fixed when opened.
type File struct {
	f    *os.File
	size uint64
}

func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.WrapError(types.KindContentNotFound, fmt.Sprintf("opening %s", path), err)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &File{f: f, size: uint64(info.Size())}, nil
}

func (f *File) Size() uint64 {
	return f.size
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.ErrInvalidSeek
	}
	if uint64(off) >= f.size {
		return 0, io.EOF
	}
	// never read past the size observed at open time
	if remaining := f.size - uint64(off); uint64(len(p)) > remaining {
		n, err := f.f.ReadAt(p[:remaining], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return f.f.ReadAt(p, off)
}

func (f *File) Close() error {
	return f.f.Close()
}
