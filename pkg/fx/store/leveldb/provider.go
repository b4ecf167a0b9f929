package leveldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/store/objectstore"
	"github.com/storacha/proofbuddy/pkg/store/objectstore/leveldb"
)

var Module = fx.Module("leveldb-store",
	fx.Provide(
		fx.Annotate(
			NewContentStore,
			fx.ResultTags(`name:"content_objects"`),
		),
		fx.Annotate(
			NewProofStore,
			fx.ResultTags(`name:"proof_objects"`),
		),
	),
)

func NewContentStore(cfg app.ContentConfig, lc fx.Lifecycle) (objectstore.Store, error) {
	return newStore(lc, cfg.DataDir, "content")
}

func NewProofStore(cfg app.ContentConfig, lc fx.Lifecycle) (objectstore.Store, error) {
	return newStore(lc, cfg.DataDir, "proofs")
}

func newStore(lc fx.Lifecycle, dataDir, name string) (objectstore.Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("no data dir provided for %s store", name)
	}
	dir := filepath.Join(dataDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s store directory: %w", name, err)
	}
	s, err := leveldb.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", name, err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}
