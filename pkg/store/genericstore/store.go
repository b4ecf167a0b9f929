package genericstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("not found")

// Codec defines encoding/decoding for a value type.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// Store is a typed key-value store over an object store.
type Store[T any] struct {
	backend objectstore.Store
	prefix  string
	codec   Codec[T]
}

// New creates a new generic store.
// The prefix is prepended to all keys when storing/retrieving from the backend.
func New[T any](backend objectstore.Store, prefix string, codec Codec[T]) *Store[T] {
	return &Store[T]{
		backend: backend,
		prefix:  prefix,
		codec:   codec,
	}
}

// Get retrieves a value by its key.
func (s *Store[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	obj, err := s.backend.Get(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("getting %s: %w", key, err)
	}
	defer obj.Body().Close()

	data, err := io.ReadAll(obj.Body())
	if err != nil {
		return zero, fmt.Errorf("reading data: %w", err)
	}

	return s.codec.Decode(data)
}

// Put stores a value at the given key.
func (s *Store[T]) Put(ctx context.Context, key string, value T) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	err = s.backend.Put(ctx, s.prefix+key, uint64(len(data)), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	return nil
}

// Has reports whether key has a value.
func (s *Store[T]) Has(ctx context.Context, key string) (bool, error) {
	obj, err := s.backend.Get(ctx, s.prefix+key, objectstore.WithOffsetLength(0, 1))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotExist) {
			return false, nil
		}
		if objectstore.IsRangeNotSatisfiable(err) {
			// zero length value
			return true, nil
		}
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	obj.Body().Close()
	return true, nil
}

// Delete removes a value by its key. It fails if the backend cannot delete.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	d, ok := s.backend.(objectstore.Deleter)
	if !ok {
		return fmt.Errorf("deleting %s: backend does not support deletion", key)
	}
	return d.Delete(ctx, s.prefix+key)
}
