package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/minio-go/v7"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

var log = logging.Logger("objectstore/minio")

var _ objectstore.Store = (*Store)(nil)
var _ objectstore.Deleter = (*Store)(nil)

// Store keeps objects in an S3 compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
}

func New(endpoint, bucket string, opts minio.Options) (*Store, error) {
	client, err := minio.New(endpoint, &opts)
	if err != nil {
		return nil, err
	}

	// allow for 5 seconds to check for existing bucket, and or create one.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if exists, err := client.BucketExists(ctx, bucket); err != nil {
		return nil, fmt.Errorf("failed to check if bucket %s exists: %w", bucket, err)
	} else if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &Store{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *Store) IsOnline() bool {
	return s.client.IsOnline()
}

func (s *Store) Put(ctx context.Context, key string, size uint64, body io.Reader) error {
	start := time.Now()
	log.Debugw("putting object", "bucket", s.bucket, "key", key, "size", size)
	obj, err := s.client.PutObject(ctx, s.bucket, key, body, int64(size), minio.PutObjectOptions{})
	if err != nil {
		log.Errorw("failed to put object", "bucket", s.bucket, "key", key, "size", size, "error", err)
		return fmt.Errorf("put object with key %s: %w", key, err)
	}
	if obj.Size != int64(size) {
		log.Errorw("put object size mismatch", "bucket", s.bucket, "key", key, "expected_size", size, "actual_size", obj.Size)
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			log.Errorw("failed to clean up partial object", "bucket", s.bucket, "key", key, "error", err)
		}
		return fmt.Errorf("put object size mismatch: got %d, expected %d", obj.Size, size)
	}
	log.Debugw("put object", "bucket", s.bucket, "key", key, "size", size, "duration", time.Since(start))
	return nil
}

type object struct {
	body *minio.Object
	size int64
}

func (o *object) Size() int64 {
	return o.size
}

func (o *object) Body() io.ReadCloser {
	return o.body
}

func (s *Store) Get(ctx context.Context, key string, opts ...objectstore.GetOption) (objectstore.Object, error) {
	start := time.Now()
	config := objectstore.NewGetConfig()
	config.ProcessOptions(opts)
	log.Debugw("getting object", "bucket", s.bucket, "key", key, "range", config.Range())

	// Stat first: GetObject is lazy and Stat on a ranged object reports the
	// whole object size.
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, objectstore.ErrNotExist
		}
		log.Errorw("get object stat failed", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("stat object with key %s: %w", key, err)
	}
	rStart, rEnd, err := config.Range().Resolve(uint64(info.Size))
	if err != nil {
		return nil, err
	}

	miOpts := minio.GetObjectOptions{}
	if !config.Range().IsZero() {
		if err := miOpts.SetRange(int64(rStart), int64(rEnd)-1); err != nil {
			return nil, fmt.Errorf("invalid range for key %s with start %d end %d: %w", key, rStart, rEnd, err)
		}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, miOpts)
	if err != nil {
		log.Errorw("get object failed", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("get object with key %s: %w", key, err)
	}
	log.Debugw("got object", "bucket", s.bucket, "key", key, "size", rEnd-rStart, "duration", time.Since(start))
	return &object{body: obj, size: int64(rEnd - rStart)}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return objectstore.ErrNotExist
		}
		return fmt.Errorf("stat object with key %s: %w", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object with key %s: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var merr minio.ErrorResponse
	if errors.As(err, &merr) {
		return merr.Code == minio.NoSuchKey
	}
	return false
}
