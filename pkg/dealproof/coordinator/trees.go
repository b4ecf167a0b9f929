package coordinator

import (
	"context"

	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// TreeSource provides the outboard tree of a deal's content.
type TreeSource interface {
	Tree(ctx context.Context, deal types.Deal, src source.Source) (*outboard.Tree, error)
}

// Forgetter is implemented by tree sources that keep trees between calls.
// A forgotten tree is rebuilt on next use.
type Forgetter interface {
	Forget(deal types.DealID)
}

// Builder is a TreeSource that builds the tree from the content on every
// call.
type Builder struct{}

func (Builder) Tree(_ context.Context, deal types.Deal, src source.Source) (*outboard.Tree, error) {
	return BuildTree(deal, src)
}

// BuildTree streams src through the incremental builder. The content must be
// exactly the deal's file size, and when the deal carries its blake3 root the
// resulting tree must match it.
func BuildTree(deal types.Deal, src source.Source) (*outboard.Tree, error) {
	if src.Size() != deal.FileSize {
		return nil, types.NewErrorf(types.KindShortRead, "content is %d bytes, deal expects %d", src.Size(), deal.FileSize)
	}
	tree, err := outboard.BuildIncremental(source.NewCursor(src), deal.FileSize)
	if err != nil {
		return nil, err
	}
	if !deal.Root.IsZero() && tree.Root() != deal.Root {
		return nil, types.NewErrorf(types.KindProofVerificationFailed, "content root %s does not match deal root %s", tree.Root(), deal.Root)
	}
	return tree, nil
}
