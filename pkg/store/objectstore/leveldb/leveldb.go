package leveldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

var _ objectstore.Store = (*Store)(nil)
var _ objectstore.Deleter = (*Store)(nil)

// Store keeps whole objects as leveldb values.
type Store struct {
	db *leveldb.DB
}

func NewStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{NoSync: false})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, key string, size uint64, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(data, buf); err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if err := s.db.Put([]byte(key), buf, nil); err != nil {
		return fmt.Errorf("failed to put data: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string, opts ...objectstore.GetOption) (objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, objectstore.ErrNotExist
		}
		return nil, fmt.Errorf("failed to get data: %w", err)
	}

	cfg := objectstore.NewGetConfig()
	cfg.ProcessOptions(opts)
	start, end, err := cfg.Range().Resolve(uint64(len(data)))
	if err != nil {
		return nil, err
	}
	rangedData := data[start:end]
	return &object{
		size: int64(len(rangedData)),
		body: io.NopCloser(bytes.NewReader(rangedData)),
	}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return fmt.Errorf("failed to check key: %w", err)
	}
	if !ok {
		return objectstore.ErrNotExist
	}
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("failed to delete data: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type object struct {
	size int64
	body io.ReadCloser
}

func (o *object) Size() int64 {
	return o.size
}

func (o *object) Body() io.ReadCloser {
	return o.body
}
