package store

import (
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/config/app"
	"github.com/storacha/proofbuddy/pkg/fx/store/leveldb"
	"github.com/storacha/proofbuddy/pkg/fx/store/memory"
	"github.com/storacha/proofbuddy/pkg/fx/store/minio"
)

// StorageModule returns the storage module matching the configured store
// kind. Each provides two objectstore.Store values, tagged
// name:"content_objects" and name:"proof_objects".
func StorageModule(cfg app.ContentConfig) fx.Option {
	switch cfg.Store {
	case app.StoreMinio:
		return minio.Module
	case app.StoreLevelDB:
		return leveldb.Module
	default:
		return memory.Module
	}
}
