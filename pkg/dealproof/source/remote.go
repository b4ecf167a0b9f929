package source

import (
	"context"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var log = logging.Logger("dealproof/source")

// RangeReader fetches a byte range of content addressed by id. It may return
// fewer bytes than requested only at the end of the content.
type RangeReader interface {
	ReadRange(ctx context.Context, id cid.Cid, offset, length uint64) ([]byte, error)
}

var _ Source = (*Remote)(nil)

// Remote is a Source over content that can only be fetched by byte range.
// Every ReadAt translates into one or more ReadRange calls, nothing is cached.
type Remote struct {
	ctx     context.Context
	api     RangeReader
	id      cid.Cid
	size    uint64
	timeout time.Duration
}

type RemoteOption func(*Remote)

// WithCallTimeout bounds each range fetch. A fetch that times out fails with
// a transient error.
func WithCallTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		r.timeout = d
	}
}

// NewRemote creates a Source for id. size must be the total content length;
// ctx bounds every fetch issued through the returned Source.
func NewRemote(ctx context.Context, api RangeReader, id cid.Cid, size uint64, opts ...RemoteOption) *Remote {
	r := &Remote{ctx: ctx, api: api, id: id, size: size}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) Size() uint64 {
	return r.size
}

func (r *Remote) ID() cid.Cid {
	return r.id
}

func (r *Remote) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.ErrInvalidSeek
	}
	if uint64(off) >= r.size {
		return 0, io.EOF
	}
	want := uint64(len(p))
	if remaining := r.size - uint64(off); want > remaining {
		want = remaining
	}

	var n uint64
	for n < want {
		data, err := r.fetch(uint64(off)+n, want-n)
		if err != nil {
			return int(n), err
		}
		if len(data) == 0 {
			return int(n), types.NewErrorf(types.KindShortRead,
				"content %s ended at %d, expected %d bytes", r.id, uint64(off)+n, r.size)
		}
		if uint64(len(data)) > want-n {
			data = data[:want-n]
		}
		copy(p[n:], data)
		n += uint64(len(data))
	}
	if n < uint64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (r *Remote) fetch(offset, length uint64) ([]byte, error) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	data, err := r.api.ReadRange(ctx, r.id, offset, length)
	if err != nil {
		log.Debugw("range fetch failed", "content", r.id, "offset", offset, "length", length, "error", err)
		return nil, types.Transient("fetching content range", err)
	}
	return data, nil
}
