package objectstore_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/storacha/go-libstoracha/testutil"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
	"github.com/storacha/proofbuddy/pkg/store/objectstore/leveldb"
	"github.com/storacha/proofbuddy/pkg/store/objectstore/memory"
)

type StoreKind string

const (
	Memory  StoreKind = "memory"
	LevelDB StoreKind = "leveldb"
)

var storeKinds = []StoreKind{Memory, LevelDB}

type store interface {
	objectstore.Store
	objectstore.Deleter
}

func makeStore(t *testing.T, k StoreKind) store {
	switch k {
	case Memory:
		return memory.NewStore()
	case LevelDB:
		s, err := leveldb.NewStore(filepath.Join(t.TempDir(), "leveldb.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	panic("unknown store kind")
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func TestPutOperations(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		size      uint64
		expectErr bool
	}{
		{name: "successful put", data: []byte("hello world"), size: 11},
		{name: "put with empty data", data: []byte{}, size: 0},
		{name: "put with large data", data: bytes.Repeat([]byte("a"), 1024*1024), size: 1024 * 1024},
		{name: "put with size mismatch", data: []byte("hello"), size: 10, expectErr: true},
	}

	for _, k := range storeKinds {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s_%s", k, tt.name), func(t *testing.T) {
				ctx := context.Background()
				s := makeStore(t, k)

				err := s.Put(ctx, "key", tt.size, bytes.NewReader(tt.data))
				if tt.expectErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)

				obj, err := s.Get(ctx, "key")
				require.NoError(t, err)
				defer obj.Body().Close()
				content, err := io.ReadAll(obj.Body())
				require.NoError(t, err)
				require.Equal(t, tt.data, content)
				require.Equal(t, int64(tt.size), obj.Size())
			})
		}
	}
}

func TestGetOperations(t *testing.T) {
	ctx := context.Background()
	testData := []byte("0123456789abcdefghijklmnopqrstuvwxyz")

	tests := []struct {
		name      string
		key       string
		opts      []objectstore.GetOption
		expected  []byte
		expectErr error
	}{
		{name: "get existing object", key: "data", expected: testData},
		{name: "get non-existent object", key: "missing", expectErr: objectstore.ErrNotExist},
		{
			name:     "get with range - start only",
			key:      "data",
			opts:     []objectstore.GetOption{objectstore.WithRange(objectstore.Range{Start: 10})},
			expected: testData[10:],
		},
		{
			name:     "get with range - start and end",
			key:      "data",
			opts:     []objectstore.GetOption{objectstore.WithRange(objectstore.Range{Start: 10, End: uint64Ptr(19)})},
			expected: testData[10:20],
		},
		{
			name:     "get with offset and length",
			key:      "data",
			opts:     []objectstore.GetOption{objectstore.WithOffsetLength(30, 6)},
			expected: testData[30:36],
		},
		{
			name:     "end past object is clamped",
			key:      "data",
			opts:     []objectstore.GetOption{objectstore.WithOffsetLength(30, 100)},
			expected: testData[30:],
		},
		{
			name:      "start past object",
			key:       "data",
			opts:      []objectstore.GetOption{objectstore.WithOffsetLength(36, 1)},
			expectErr: objectstore.ErrRangeNotSatisfiable{Range: objectstore.Range{Start: 36, End: uint64Ptr(36)}},
		},
	}

	for _, k := range storeKinds {
		s := makeStore(t, k)
		require.NoError(t, s.Put(ctx, "data", uint64(len(testData)), bytes.NewReader(testData)))

		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s_%s", k, tt.name), func(t *testing.T) {
				obj, err := s.Get(ctx, tt.key, tt.opts...)
				if tt.expectErr != nil {
					require.Error(t, err)
					require.Equal(t, tt.expectErr, err)
					return
				}
				require.NoError(t, err)
				defer obj.Body().Close()

				content, err := io.ReadAll(obj.Body())
				require.NoError(t, err)
				require.Equal(t, tt.expected, content)
				require.Equal(t, int64(len(tt.expected)), obj.Size())
			})
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for _, k := range storeKinds {
		t.Run(string(k), func(t *testing.T) {
			s := makeStore(t, k)
			data := testutil.RandomBytes(t, 64)
			require.NoError(t, s.Put(ctx, "key", 64, bytes.NewReader(data)))

			require.NoError(t, s.Delete(ctx, "key"))
			_, err := s.Get(ctx, "key")
			require.ErrorIs(t, err, objectstore.ErrNotExist)
			require.ErrorIs(t, s.Delete(ctx, "key"), objectstore.ErrNotExist)
		})
	}
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	numOperations := 10
	for _, k := range storeKinds {
		s := makeStore(t, k)

		t.Run(fmt.Sprintf("%s_concurrent", k), func(t *testing.T) {
			var wg sync.WaitGroup
			errCh := make(chan error, numOperations)
			for i := 0; i < numOperations; i++ {
				wg.Add(1)
				go func(index int) {
					defer wg.Done()
					data := []byte(fmt.Sprintf("data-%d", index))
					errCh <- s.Put(ctx, fmt.Sprintf("key-%d", index), uint64(len(data)), bytes.NewReader(data))
				}(i)
			}
			wg.Wait()
			close(errCh)
			for err := range errCh {
				require.NoError(t, err)
			}

			for i := 0; i < numOperations; i++ {
				obj, err := s.Get(ctx, fmt.Sprintf("key-%d", i))
				require.NoError(t, err)
				data, err := io.ReadAll(obj.Body())
				require.NoError(t, err)
				require.Equal(t, fmt.Sprintf("data-%d", i), string(data))
			}
		})
	}
}

func TestEdgeCases(t *testing.T) {
	ctx := context.Background()
	for _, k := range storeKinds {
		s := makeStore(t, k)

		t.Run(fmt.Sprintf("%s_put with context cancellation", k), func(t *testing.T) {
			cancelCtx, cancel := context.WithCancel(ctx)
			cancel()
			data := []byte("test data")
			require.Error(t, s.Put(cancelCtx, "key", uint64(len(data)), bytes.NewReader(data)))
		})
	}
}
