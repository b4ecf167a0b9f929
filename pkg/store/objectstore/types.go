// Package objectstore defines a minimal keyed blob store with ranged reads,
// implemented by the memory, leveldb and minio subpackages.
package objectstore

import (
	"context"
	"io"

	"go.uber.org/zap/zapcore"
)

type Store interface {
	// Put stores an object with the given key and size from the provided reader.
	// The size parameter must match the actual bytes to be read from data.
	Put(ctx context.Context, key string, size uint64, data io.Reader) error
	// Get retrieves the object identified by the given key.
	// Use GetOption functions like WithRange to retrieve partial objects.
	Get(ctx context.Context, key string, opts ...GetOption) (Object, error)
}

// Deleter is implemented by stores that support removing objects.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

type Object interface {
	// Size returns the size of the returned body in bytes. For ranged reads
	// this is the length of the range, not the whole object.
	Size() int64
	Body() io.ReadCloser
}

type GetConfig interface {
	ProcessOptions([]GetOption)
	Range() Range
}

func NewGetConfig() GetConfig {
	return &options{}
}

type GetOption func(cfg *options)

type Range struct {
	// Start is the starting byte position (inclusive)
	Start uint64
	// End is the ending byte position (inclusive), nil means read to EOF
	End *uint64
}

// IsZero reports whether the range selects the whole object.
func (r Range) IsZero() bool {
	return r.Start == 0 && r.End == nil
}

// Resolve clamps the range to an object of the given size and returns the
// half open byte interval it selects. An End past the object is clamped, a
// Start at or past the end of a non-empty selection is unsatisfiable.
func (r Range) Resolve(size uint64) (start, end uint64, err error) {
	if r.IsZero() {
		return 0, size, nil
	}
	if r.Start >= size || (r.End != nil && *r.End < r.Start) {
		return 0, 0, ErrRangeNotSatisfiable{Range: r}
	}
	end = size
	if r.End != nil && *r.End+1 < size {
		end = *r.End + 1
	}
	return r.Start, end, nil
}

func (r Range) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint64("start", r.Start)
	if r.End != nil {
		encoder.AddUint64("end", *r.End)
	}
	return nil
}

type options struct {
	byteRange Range
}

func (o *options) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	return o.byteRange.MarshalLogObject(encoder)
}

func (o *options) ProcessOptions(opts []GetOption) {
	for _, opt := range opts {
		opt(o)
	}
}

func (o *options) Range() Range {
	return o.byteRange
}

// WithRange configures a byte range to extract.
// Start and End are inclusive byte positions, following HTTP range semantics.
// End can be nil to read from Start to EOF.
func WithRange(byteRange Range) GetOption {
	return func(opts *options) {
		opts.byteRange = byteRange
	}
}

// WithOffsetLength selects length bytes starting at offset. length must be
// positive.
func WithOffsetLength(offset, length uint64) GetOption {
	end := offset + length - 1
	return WithRange(Range{Start: offset, End: &end})
}
