package minio

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/storacha/go-libstoracha/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

// startMinio runs a minio server for the test and returns its endpoint.
// Tests are skipped without a container runtime.
func startMinio(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping minio container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcminio.Run(ctx, "minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})
	require.NoError(t, err)

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return endpoint
}

func createTestStore(t *testing.T, endpoint, bucket string) *Store {
	store, err := New(endpoint, bucket, minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.True(t, store.IsOnline())
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	endpoint := startMinio(t)
	store := createTestStore(t, endpoint, "proofbuddy-test")

	data := testutil.RandomBytes(t, 64*1024)

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "whole", uint64(len(data)), bytes.NewReader(data)))
		obj, err := store.Get(ctx, "whole")
		require.NoError(t, err)
		defer obj.Body().Close()
		require.Equal(t, int64(len(data)), obj.Size())
		got, err := io.ReadAll(obj.Body())
		require.NoError(t, err)
		require.Equal(t, data, got)
	})

	t.Run("ranged get", func(t *testing.T) {
		end := uint64(2047)
		obj, err := store.Get(ctx, "whole", objectstore.WithRange(objectstore.Range{Start: 1024, End: &end}))
		require.NoError(t, err)
		defer obj.Body().Close()
		require.Equal(t, int64(1024), obj.Size())
		got, err := io.ReadAll(obj.Body())
		require.NoError(t, err)
		require.Equal(t, data[1024:2048], got)
	})

	t.Run("range past end", func(t *testing.T) {
		_, err := store.Get(ctx, "whole", objectstore.WithRange(objectstore.Range{Start: uint64(len(data))}))
		var rangeErr objectstore.ErrRangeNotSatisfiable
		require.ErrorAs(t, err, &rangeErr)
	})

	t.Run("size mismatch", func(t *testing.T) {
		err := store.Put(ctx, "mismatch", 10, strings.NewReader("hello"))
		require.Error(t, err)
		_, err = store.Get(ctx, "mismatch")
		require.ErrorIs(t, err, objectstore.ErrNotExist)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "gone", 4, strings.NewReader("gone")))
		require.NoError(t, store.Delete(ctx, "gone"))
		_, err := store.Get(ctx, "gone")
		require.ErrorIs(t, err, objectstore.ErrNotExist)
		require.ErrorIs(t, store.Delete(ctx, "gone"), objectstore.ErrNotExist)
	})
}
