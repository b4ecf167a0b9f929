// Package content is the content-addressed store that deals are proven
// against. Objects are keyed by the CIDv1 (raw, sha2-256) of their bytes and
// can be read back by byte range.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/proofbuddy/lib/verifyread"
	"github.com/storacha/proofbuddy/pkg/dealproof/fingerprint"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

var log = logging.Logger("dealproof/content")

var _ source.RangeReader = (*Store)(nil)

// Store publishes and reads content through an objectstore. It holds no
// state of its own and is safe for concurrent use.
type Store struct {
	objects objectstore.Store
}

func New(objects objectstore.Store) *Store {
	return &Store{objects: objects}
}

func key(id cid.Cid) string {
	return id.String()
}

// Publish stores data and returns its content id.
func (s *Store) Publish(ctx context.Context, data []byte) (cid.Cid, error) {
	id := fingerprint.CIDOf(data)
	if err := s.objects.Put(ctx, key(id), uint64(len(data)), bytes.NewReader(data)); err != nil {
		return cid.Undef, types.Transient("publishing content", err)
	}
	log.Infow("published content", "cid", id, "size", len(data))
	return id, nil
}

// PublishSource stores the content of src, hashing it in a first pass to
// derive its id.
func (s *Store) PublishSource(ctx context.Context, src source.Source) (fingerprint.Fingerprint, error) {
	fp, err := fingerprint.Compute(source.NewCursor(src))
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	if err := s.objects.Put(ctx, key(fp.CID), fp.Size, source.NewCursor(src)); err != nil {
		return fingerprint.Fingerprint{}, types.Transient("publishing content", err)
	}
	log.Infow("published content", "cid", fp.CID, "size", fp.Size)
	return fp, nil
}

// ReadRange returns up to length bytes of id starting at offset. It returns
// no bytes once offset reaches the end of the content.
func (s *Store) ReadRange(ctx context.Context, id cid.Cid, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	obj, err := s.objects.Get(ctx, key(id), objectstore.WithOffsetLength(offset, length))
	if err != nil {
		if objectstore.IsRangeNotSatisfiable(err) {
			return nil, nil
		}
		return nil, classify(id, err)
	}
	body := obj.Body()
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("reading range of %s", id), err)
	}
	return data, nil
}

// Stat returns the size of id.
func (s *Store) Stat(ctx context.Context, id cid.Cid) (uint64, error) {
	obj, err := s.objects.Get(ctx, key(id))
	if err != nil {
		return 0, classify(id, err)
	}
	obj.Body().Close()
	return uint64(obj.Size()), nil
}

// IsPinned reports whether id is held by the store.
func (s *Store) IsPinned(ctx context.Context, id cid.Cid) (bool, error) {
	_, err := s.Stat(ctx, id)
	if errors.Is(err, types.ErrContentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadAll returns the whole of id, checking the bytes hash to id.
func (s *Store) ReadAll(ctx context.Context, id cid.Cid) ([]byte, error) {
	obj, err := s.objects.Get(ctx, key(id))
	if err != nil {
		return nil, classify(id, err)
	}
	body := obj.Body()
	defer body.Close()
	r, err := fingerprint.NewVerifyingReader(body, id, uint64(obj.Size()))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if errors.Is(err, verifyread.ErrHashMismatch) || errors.Is(err, verifyread.ErrLengthMismatch) {
		return nil, types.WrapError(types.KindInvalidInput, fmt.Sprintf("content does not match %s", id), err)
	}
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("reading %s", id), err)
	}
	return data, nil
}

// Remove unpins id. Stores that cannot delete report ErrInvalidInput.
func (s *Store) Remove(ctx context.Context, id cid.Cid) error {
	d, ok := s.objects.(objectstore.Deleter)
	if !ok {
		return types.NewErrorf(types.KindInvalidInput, "store %T does not support removal", s.objects)
	}
	if err := d.Delete(ctx, key(id)); err != nil {
		return classify(id, err)
	}
	log.Infow("removed content", "cid", id)
	return nil
}

// Open returns a Source reading id by range through this store.
func (s *Store) Open(ctx context.Context, id cid.Cid, opts ...source.RemoteOption) (*source.Remote, error) {
	size, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	return source.NewRemote(ctx, s, id, size, opts...), nil
}

func classify(id cid.Cid, err error) error {
	if errors.Is(err, objectstore.ErrNotExist) {
		return types.WrapError(types.KindContentNotFound, fmt.Sprintf("content %s", id), err)
	}
	return types.Transient(fmt.Sprintf("fetching %s", id), err)
}
