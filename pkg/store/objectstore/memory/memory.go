package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

var _ objectstore.Store = (*Store)(nil)
var _ objectstore.Deleter = (*Store)(nil)

// Store keeps objects in a map. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewStore() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return objectstore.ErrNotExist
	}
	delete(s.objects, key)
	return nil
}

func (s *Store) Put(ctx context.Context, key string, size uint64, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(data, buf); err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	s.mu.Lock()
	s.objects[key] = buf
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, key string, opts ...objectstore.GetOption) (objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, exists := s.objects[key]
	s.mu.RUnlock()
	if !exists {
		return nil, objectstore.ErrNotExist
	}

	cfg := objectstore.NewGetConfig()
	cfg.ProcessOptions(opts)
	start, end, err := cfg.Range().Resolve(uint64(len(data)))
	if err != nil {
		return nil, err
	}
	return object(data[start:end]), nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

type object []byte

func (o object) Size() int64 {
	return int64(len(o))
}

func (o object) Body() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(o))
}
