package minio

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/store/objectstore"
	miniostore "github.com/storacha/proofbuddy/pkg/store/objectstore/minio"
)

// Module keeps content and proofs in one bucket, their keys do not overlap.
var Module = fx.Module("minio-store",
	fx.Provide(
		NewStore,
		fx.Annotate(
			func(s *miniostore.Store) objectstore.Store { return s },
			fx.ResultTags(`name:"content_objects"`),
		),
		fx.Annotate(
			func(s *miniostore.Store) objectstore.Store { return s },
			fx.ResultTags(`name:"proof_objects"`),
		),
	),
)

func NewStore(cfg app.ContentConfig) (*miniostore.Store, error) {
	s, err := miniostore.New(cfg.Minio.Endpoint, cfg.Minio.Bucket, minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKeyID, cfg.Minio.SecretAccessKey, ""),
		Secure: !cfg.Minio.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio store: %w", err)
	}
	return s, nil
}
