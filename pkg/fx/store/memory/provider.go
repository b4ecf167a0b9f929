package memory

import (
	"go.uber.org/fx"

	"github.com/storacha/proofbuddy/pkg/store/objectstore"
	"github.com/storacha/proofbuddy/pkg/store/objectstore/memory"
)

var Module = fx.Module("memory-store",
	fx.Provide(
		fx.Annotate(
			NewObjectStore,
			fx.ResultTags(`name:"content_objects"`),
		),
		fx.Annotate(
			NewObjectStore,
			fx.ResultTags(`name:"proof_objects"`),
		),
	),
)

func NewObjectStore() objectstore.Store {
	return memory.NewStore()
}
