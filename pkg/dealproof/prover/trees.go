package prover

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/storacha/proofbuddy/pkg/dealproof/coordinator"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/proofstore"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

const defaultTreeCacheSize = 64

var (
	_ coordinator.TreeSource = (*TreeCache)(nil)
	_ coordinator.Forgetter  = (*TreeCache)(nil)
)

// TreeCache keeps recently used outboard trees in memory and, when given a
// proofstore, on disk. Concurrent requests for the same deal share a single
// build.
type TreeCache struct {
	cache  *lru.Cache[types.DealID, *outboard.Tree]
	group  singleflight.Group
	store  *proofstore.Store
	builds atomic.Int64
}

// NewTreeCache creates a cache holding up to size trees. store may be nil.
func NewTreeCache(size int, store *proofstore.Store) (*TreeCache, error) {
	if size <= 0 {
		size = defaultTreeCacheSize
	}
	cache, err := lru.New[types.DealID, *outboard.Tree](size)
	if err != nil {
		return nil, fmt.Errorf("creating tree cache: %w", err)
	}
	return &TreeCache{cache: cache, store: store}, nil
}

// Tree returns the tree of deal, building it from src when it is neither
// cached nor persisted. A caller that joins a build led by a caller whose
// context is then cancelled starts a build of its own.
func (c *TreeCache) Tree(ctx context.Context, deal types.Deal, src source.Source) (*outboard.Tree, error) {
	for {
		if tree, ok := c.cache.Get(deal.ID); ok {
			return tree, nil
		}
		var led bool
		ch := c.group.DoChan(deal.ID.String(), func() (interface{}, error) {
			led = true
			return c.build(ctx, deal, src)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*outboard.Tree), nil
			}
			if !led && ctx.Err() == nil && isCancellation(res.Err) {
				log.Debugw("shared tree build was cancelled, retrying", "deal", deal.ID, "error", res.Err)
				continue
			}
			return nil, res.Err
		}
	}
}

func (c *TreeCache) build(ctx context.Context, deal types.Deal, src source.Source) (*outboard.Tree, error) {
	if tree, ok := c.cache.Get(deal.ID); ok {
		return tree, nil
	}
	tree, err := c.load(ctx, deal)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		c.builds.Add(1)
		tree, err = coordinator.BuildTree(deal, src)
		if err != nil {
			return nil, err
		}
		log.Infow("built outboard tree", "deal", deal.ID, "root", tree.Root(), "length", tree.ContentLength())
		if c.store != nil {
			// the tree is good even if the caller has gone away
			if err := c.store.PutTree(context.WithoutCancel(ctx), deal.ID, tree); err != nil {
				log.Warnw("failed to persist outboard tree", "deal", deal.ID, "error", err)
			}
		}
	}
	c.cache.Add(deal.ID, tree)
	return tree, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// load returns the persisted tree for deal if it still matches the deal.
func (c *TreeCache) load(ctx context.Context, deal types.Deal) (*outboard.Tree, error) {
	if c.store == nil {
		return nil, nil
	}
	tree, ok, err := c.store.GetTree(ctx, deal.ID)
	if err != nil || !ok {
		return nil, err
	}
	if tree.ContentLength() != deal.FileSize || (!deal.Root.IsZero() && tree.Root() != deal.Root) {
		log.Warnw("persisted outboard tree does not match deal, rebuilding", "deal", deal.ID)
		return nil, nil
	}
	return tree, nil
}

// Forget drops the tree of deal from memory and from the proofstore.
func (c *TreeCache) Forget(deal types.DealID) {
	c.cache.Remove(deal)
	if c.store != nil {
		if err := c.store.DeleteTree(context.Background(), deal); err != nil {
			log.Warnw("failed to delete persisted outboard tree", "deal", deal, "error", err)
		}
	}
}

// Builds returns how many trees were built from content.
func (c *TreeCache) Builds() int64 {
	return c.builds.Load()
}

func (c *TreeCache) Len() int {
	return c.cache.Len()
}
