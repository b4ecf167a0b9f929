package chain_test

import (
	"context"
	"testing"

	"github.com/storacha/go-libstoracha/testutil"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

func newDeal(t *testing.T, data []byte) (types.Deal, *outboard.Tree) {
	tree, err := outboard.BuildBulk(data)
	require.NoError(t, err)
	return types.Deal{
		ID:       1,
		Timeline: types.DealTimeline{StartBlock: 3, LengthInBlocks: 21, ProofFrequencyInBlocks: 5},
		FileSize: uint64(len(data)),
		Root:     tree.Root(),
	}, tree
}

func prove(t *testing.T, ctx context.Context, mem *chain.Memory, deal types.Deal, tree *outboard.Tree, data []byte, idx uint64, target types.BlockNum) types.Proof {
	h, err := mem.BlockHash(ctx, target)
	require.NoError(t, err)
	c, err := challenge.Derive(h, deal.FileSize)
	require.NoError(t, err)
	artifact, err := tree.Slice(source.NewCursor(source.Bytes(data)), c.Offset, c.Size)
	require.NoError(t, err)
	return types.Proof{DealID: deal.ID, Window: idx, TargetBlock: target, Challenge: c, Data: artifact}
}

func TestMemoryBlockHash(t *testing.T) {
	ctx := context.Background()
	mem := chain.NewMemory(10)

	a, err := mem.BlockHash(ctx, 5)
	require.NoError(t, err)
	b, err := mem.BlockHash(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = mem.BlockHash(ctx, 11)
	require.Error(t, err)
	require.True(t, types.IsRetryable(err))

	mem.Advance(1)
	_, err = mem.BlockHash(ctx, 11)
	require.NoError(t, err)

	override := types.Hash{1}
	mem.SetBlockHash(4, override)
	h, err := mem.BlockHash(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, override, h)
}

func TestMemorySubmitProof(t *testing.T) {
	ctx := context.Background()
	data := testutil.RandomBytes(t, 5000)
	deal, tree := newDeal(t, data)
	mem := chain.NewMemory(4)
	mem.AddDeal(deal)

	proof := prove(t, ctx, mem, deal, tree, data, 0, 3)
	block, err := mem.SubmitProof(ctx, proof)
	require.NoError(t, err)
	require.Equal(t, types.BlockNum(4), block)

	prior, ok, err := mem.PriorSubmission(ctx, deal.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockNum(4), prior)

	t.Run("duplicate", func(t *testing.T) {
		mem.Advance(1)
		block, err := mem.SubmitProof(ctx, proof)
		require.ErrorIs(t, err, types.ErrAlreadyRecorded)
		require.Equal(t, types.BlockNum(4), block)
		require.Len(t, mem.Submissions(deal.ID), 1)
	})

	t.Run("wrong target", func(t *testing.T) {
		bad := proof
		bad.Window = 1
		_, err := mem.SubmitProof(ctx, bad)
		require.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("forged proof", func(t *testing.T) {
		mem.SetHead(9)
		good := prove(t, ctx, mem, deal, tree, data, 1, 8)
		bad := good
		bad.Data = append(types.ProofArtifact(nil), good.Data...)
		bad.Data[len(bad.Data)-1] ^= 0xff
		_, err := mem.SubmitProof(ctx, bad)
		require.ErrorIs(t, err, types.ErrProofVerificationFailed)

		_, err = mem.SubmitProof(ctx, good)
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		mem.SetHead(18)
		late := prove(t, ctx, mem, deal, tree, data, 2, 13)
		_, err := mem.SubmitProof(ctx, late)
		require.ErrorIs(t, err, types.ErrWindowExpired)
	})

	t.Run("unknown deal", func(t *testing.T) {
		bad := proof
		bad.DealID = 99
		_, err := mem.SubmitProof(ctx, bad)
		require.ErrorIs(t, err, types.ErrInvalidInput)
	})

	require.Len(t, mem.Submissions(deal.ID), 2)
}

func TestMemoryGetDeal(t *testing.T) {
	ctx := context.Background()
	deal, _ := newDeal(t, []byte("hello"))
	mem := chain.NewMemory(0)
	mem.AddDeal(deal)

	got, err := mem.GetDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Equal(t, deal, got)

	_, err = mem.GetDeal(ctx, 2)
	require.Error(t, err)
}
