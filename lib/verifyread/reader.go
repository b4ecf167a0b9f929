// Package verifyread wraps a reader so that the bytes it yields are checked
// against an expected digest, and optionally an expected length, once the
// stream ends.
package verifyread

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"io"
)

var (
	ErrHashMismatch   = errors.New("hash validation failed")
	ErrLengthMismatch = errors.New("length validation failed")
)

type Reader struct {
	src         io.Reader
	h           hash.Hash
	expectedSum []byte
	expectedLen *uint64

	bytesRead uint64
	done      bool  // reached EOF and validated
	finalErr  error // latched terminal error
}

type Option func(*Reader)

// WithLength additionally requires the stream to be exactly n bytes.
func WithLength(n uint64) Option {
	return func(r *Reader) {
		r.expectedLen = &n
	}
}

// New panics if src or h is nil or expected is empty.
func New(src io.Reader, h hash.Hash, expected []byte, opts ...Option) *Reader {
	if src == nil {
		panic("source reader cannot be nil")
	}
	if h == nil {
		panic("hash cannot be nil")
	}
	if len(expected) == 0 {
		panic("expected digest cannot be empty")
	}
	r := &Reader{src: src, h: h, expectedSum: expected}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.finalErr != nil {
		return 0, r.finalErr
	}
	if r.done {
		return 0, io.EOF
	}

	n, err := r.src.Read(p)
	if n > 0 {
		if _, herr := r.h.Write(p[:n]); herr != nil {
			return 0, herr
		}
		r.bytesRead += uint64(n)
		if r.expectedLen != nil && r.bytesRead > *r.expectedLen {
			r.finalErr = fmt.Errorf("%w: read more than %d bytes", ErrLengthMismatch, *r.expectedLen)
			return n, r.finalErr
		}
	}

	if err == io.EOF {
		if verr := r.validate(); verr != nil {
			r.finalErr = verr
			// the caller still receives the final n bytes, alongside the failure
			return n, verr
		}
		r.done = true
		return n, io.EOF
	}
	return n, err
}

func (r *Reader) validate() error {
	if r.expectedLen != nil && r.bytesRead != *r.expectedLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrLengthMismatch, *r.expectedLen, r.bytesRead)
	}
	if sum := r.h.Sum(nil); !bytes.Equal(sum, r.expectedSum) {
		return fmt.Errorf("%w: expected %x, got %x", ErrHashMismatch, r.expectedSum, sum)
	}
	return nil
}

func (r *Reader) BytesRead() uint64 { return r.bytesRead }

// Validated reports whether the stream ended and matched.
func (r *Reader) Validated() bool {
	return r.done
}
