package prover_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storacha/go-libstoracha/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/content"
	"github.com/storacha/proofbuddy/pkg/dealproof/coordinator"
	"github.com/storacha/proofbuddy/pkg/dealproof/fingerprint"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/proofstore"
	"github.com/storacha/proofbuddy/pkg/dealproof/prover"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/store/objectstore/memory"
)

var fastRetry = prover.WithCoordinatorOptions(coordinator.WithRetry(coordinator.RetryConfig{
	Initial: time.Millisecond,
	Max:     2 * time.Millisecond,
}))

type fixture struct {
	chain   *chain.Memory
	content *content.Store
	deals   []types.Deal
}

// newFixture publishes n files and registers a deal for each. Deal i starts
// at block i and proves every 4 blocks over 12 blocks.
func newFixture(t *testing.T, n int) fixture {
	ctx := context.Background()
	f := fixture{
		chain:   chain.NewMemory(0),
		content: content.New(memory.NewStore()),
	}
	for i := range n {
		data := testutil.RandomBytes(t, 1000+i*1500)
		id := testutil.Must(f.content.Publish(ctx, data))(t)
		tree := testutil.Must(outboard.BuildBulk(data))(t)
		deal := types.Deal{
			ID:       types.DealID(i + 1),
			Timeline: types.DealTimeline{StartBlock: types.BlockNum(i), LengthInBlocks: 12, ProofFrequencyInBlocks: 4},
			Content:  id,
			FileSize: uint64(len(data)),
			Root:     tree.Root(),
			Status:   types.DealActive,
		}
		f.chain.AddDeal(deal)
		f.deals = append(f.deals, deal)
	}
	return f
}

func TestTickAllProvesEveryDeal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	trees := testutil.Must(prover.NewTreeCache(8, nil))(t)
	svc := prover.New(f.chain, prover.ContentOpener(f.content, time.Second), fastRetry,
		prover.WithTrees(trees), prover.WithMaxConcurrent(2))
	for _, d := range f.deals {
		require.NoError(t, svc.AddDeal(d))
	}
	require.Equal(t, []types.DealID{1, 2, 3, 4}, svc.Deals())

	f.chain.SetHead(3)
	results, err := svc.TickAll(ctx, 3)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		require.Equal(t, types.DealID(i+1), r.Deal)
		require.NoError(t, r.Err)
		require.Len(t, r.Report.Resolved, 1)
		require.Equal(t, coordinator.OutcomeProven, r.Report.Resolved[0].Outcome)
	}

	// deal 1 missed its second window and proves its third
	f.chain.SetHead(8)
	_, err = svc.TickAll(ctx, 8)
	require.NoError(t, err)
	for _, d := range f.deals {
		subs := f.chain.Submissions(d.ID)
		require.NotEmpty(t, subs)
	}

	// each tree is built once and reused across windows
	require.Equal(t, int64(4), trees.Builds())
	require.Equal(t, 4, trees.Len())
}

func TestTickAllSkipsFutureAndFinishedDeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	svc := prover.New(f.chain, prover.ContentOpener(f.content, 0), fastRetry)
	for _, d := range f.deals {
		require.NoError(t, svc.AddDeal(d))
	}

	// deal 2 starts at block 1
	results, err := svc.TickAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.DealID(1), results[0].Deal)

	f.chain.SetHead(100)
	results, err = svc.TickAll(ctx, 100)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.Report.Done)
	}

	results, err = svc.TickAll(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestTickAllSeparatesTerminalFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	missing := f.deals[1]
	missing.Content = fingerprint.CIDOf([]byte("never published"))
	f.chain.AddDeal(missing)

	svc := prover.New(f.chain, prover.ContentOpener(f.content, 0), fastRetry)
	require.NoError(t, svc.AddDeal(f.deals[0]))
	require.NoError(t, svc.AddDeal(missing))

	f.chain.SetHead(2)
	results, err := svc.TickAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.True(t, types.IsDealFailure(results[1].Err))
	require.ErrorIs(t, results[1].Err, types.ErrContentNotFound)

	c, ok := svc.Coordinator(missing.ID)
	require.True(t, ok)
	require.Error(t, c.Failure())

	// a failed deal is not ticked again
	results, err = svc.TickAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

// flakyOpener fails the first open of every deal with a transient error.
type flakyOpener struct {
	mu     sync.Mutex
	seen   map[types.DealID]bool
	opener coordinator.Opener
}

func (o *flakyOpener) Open(ctx context.Context, deal types.Deal) (source.Source, error) {
	o.mu.Lock()
	first := !o.seen[deal.ID]
	o.seen[deal.ID] = true
	o.mu.Unlock()
	if first {
		return nil, types.Transient("open", errors.New("connection refused"))
	}
	return o.opener.Open(ctx, deal)
}

func TestTickAllCombinesTransientErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	opener := &flakyOpener{seen: map[types.DealID]bool{}, opener: prover.ContentOpener(f.content, 0)}

	// no retries within a tick
	svc := prover.New(f.chain, opener, prover.WithCoordinatorOptions(coordinator.WithRetry(coordinator.RetryConfig{
		Initial:    time.Millisecond,
		Max:        time.Millisecond,
		MaxElapsed: time.Nanosecond,
	})))
	for _, d := range f.deals {
		require.NoError(t, svc.AddDeal(d))
	}

	f.chain.SetHead(2)
	_, err := svc.TickAll(ctx, 2)
	require.Error(t, err)
	require.False(t, types.IsDealFailure(err))
	require.True(t, types.IsRetryable(err))

	results, err := svc.TickAll(ctx, 2)
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, coordinator.OutcomeProven, r.Report.Resolved[len(r.Report.Resolved)-1].Outcome)
	}
}

func TestAddDeal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	svc := prover.New(f.chain, prover.ContentOpener(f.content, 0))

	require.NoError(t, svc.AddDeals(ctx, f.chain, 1, 2))
	require.ErrorIs(t, svc.AddDeal(f.deals[0]), prover.ErrDealExists)

	err := svc.AddDeals(ctx, f.chain, 99)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	svc.RemoveDeal(1)
	require.Equal(t, []types.DealID{2}, svc.Deals())

	require.NoError(t, svc.Close())
	require.Error(t, svc.AddDeal(f.deals[0]))
}

type closer struct {
	closed atomic.Bool
	err    error
}

func (c *closer) Close() error {
	c.closed.Store(true)
	return c.err
}

func TestCloseCombinesErrors(t *testing.T) {
	f := newFixture(t, 0)
	ok := &closer{}
	bad1 := &closer{err: errors.New("one")}
	bad2 := &closer{err: errors.New("two")}
	svc := prover.New(f.chain, prover.ContentOpener(f.content, 0), prover.WithCloser(bad1, ok, bad2))

	err := svc.Close()
	require.ErrorContains(t, err, "one")
	require.ErrorContains(t, err, "two")
	require.True(t, ok.closed.Load())
	require.NoError(t, svc.Close())
}

func TestTreeCache(t *testing.T) {
	ctx := context.Background()
	data := testutil.RandomBytes(t, 9000)
	tree := testutil.Must(outboard.BuildBulk(data))(t)
	deal := types.Deal{ID: 5, FileSize: uint64(len(data)), Root: tree.Root()}
	store := proofstore.New(memory.NewStore())

	cache := testutil.Must(prover.NewTreeCache(2, store))(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Tree(ctx, deal, source.Bytes(data))
			if assert.NoError(t, err) {
				assert.Equal(t, tree.Root(), got.Root())
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), cache.Builds())

	t.Run("loads persisted tree", func(t *testing.T) {
		fresh := testutil.Must(prover.NewTreeCache(2, store))(t)
		got, err := fresh.Tree(ctx, deal, source.Bytes(data))
		require.NoError(t, err)
		require.Equal(t, tree.Bytes(), got.Bytes())
		require.Zero(t, fresh.Builds())
	})

	t.Run("forget rebuilds", func(t *testing.T) {
		cache.Forget(deal.ID)
		_, ok, err := store.GetTree(ctx, deal.ID)
		require.NoError(t, err)
		require.False(t, ok)

		_, err = cache.Tree(ctx, deal, source.Bytes(data))
		require.NoError(t, err)
		require.Equal(t, int64(2), cache.Builds())
	})

	t.Run("build errors are not cached", func(t *testing.T) {
		bad := deal
		bad.ID = 6
		bad.Root[0] ^= 1
		_, err := cache.Tree(ctx, bad, source.Bytes(data))
		require.ErrorIs(t, err, types.ErrProofVerificationFailed)
		require.Equal(t, 1, cache.Len())
	})
}

// blockingSource stalls its first read until ctx is done.
type blockingSource struct {
	ctx     context.Context
	size    uint64
	started chan struct{}
	once    sync.Once
}

func (b *blockingSource) Size() uint64 {
	return b.size
}

func (b *blockingSource) ReadAt(p []byte, off int64) (int, error) {
	b.once.Do(func() { close(b.started) })
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func TestTreeCacheLeaderCancelled(t *testing.T) {
	data := testutil.RandomBytes(t, 5000)
	tree := testutil.Must(outboard.BuildBulk(data))(t)
	deal := types.Deal{ID: 9, FileSize: uint64(len(data)), Root: tree.Root()}
	cache := testutil.Must(prover.NewTreeCache(2, nil))(t)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stalled := &blockingSource{ctx: leaderCtx, size: deal.FileSize, started: make(chan struct{})}

	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Tree(leaderCtx, deal, stalled)
		leaderErr <- err
	}()
	<-stalled.started

	type result struct {
		tree *outboard.Tree
		err  error
	}
	waiter := make(chan result, 1)
	go func() {
		got, err := cache.Tree(context.Background(), deal, source.Bytes(data))
		waiter <- result{got, err}
	}()
	// let the waiter join the stalled build before its leader goes away
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-leaderErr, context.Canceled)
	select {
	case res := <-waiter:
		require.NoError(t, res.err)
		require.Equal(t, tree.Root(), res.tree.Root())
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never got a tree")
	}
	require.Equal(t, int64(2), cache.Builds())
	require.Equal(t, 1, cache.Len())
}

// stuckChain never returns the hash of one block until the caller gives up.
type stuckChain struct {
	*chain.Memory
	block  types.BlockNum
	active atomic.Int32
	peak   atomic.Int32
}

func (s *stuckChain) BlockHash(ctx context.Context, n types.BlockNum) (types.Hash, error) {
	if n != s.block {
		return s.Memory.BlockHash(ctx, n)
	}
	now := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.peak.Load()
		if now <= peak || s.peak.CompareAndSwap(peak, now) {
			break
		}
	}
	<-ctx.Done()
	return types.Hash{}, types.Transient("reading block hash", ctx.Err())
}

func TestHandleHeadDoesNotWaitForStuckDeal(t *testing.T) {
	f := newFixture(t, 2)
	// deal 1 targets block 0, deal 2 targets block 1
	stuck := &stuckChain{Memory: f.chain, block: 0}
	svc := prover.New(stuck, prover.ContentOpener(f.content, time.Second), fastRetry)
	for _, d := range f.deals {
		require.NoError(t, svc.AddDeal(d))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.chain.SetHead(3)
	returned := make(chan error, 1)
	go func() { returned <- svc.HandleHead(ctx, 0, 3) }()
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("HandleHead waited for the stuck deal")
	}

	require.Eventually(t, func() bool {
		return len(f.chain.Submissions(2)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, f.chain.Submissions(1))
	require.Eventually(t, func() bool { return stuck.active.Load() == 1 }, time.Second, time.Millisecond)

	// the next head does not start a second tick of the stuck deal
	f.chain.SetHead(4)
	require.NoError(t, svc.HandleHead(ctx, 3, 4))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), stuck.peak.Load())

	cancel()
	require.NoError(t, svc.Close())
	require.Zero(t, stuck.active.Load())
	require.Empty(t, f.chain.Submissions(1))
}
