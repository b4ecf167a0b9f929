// Package chain is the proving side's view of the deal contract: chain head,
// block hashes, deal lookup and proof submission.
package chain

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var log = logging.Logger("dealproof/chain")

// API is what a deal coordinator needs from the chain. Implementations must
// be safe for concurrent use by many coordinators.
type API interface {
	CurrentBlockNumber(ctx context.Context) (types.BlockNum, error)
	// BlockHash fails with a retryable error if block n is not yet available.
	BlockHash(ctx context.Context, n types.BlockNum) (types.Hash, error)
	// SubmitProof records proof and returns the block it was included in. A
	// proof for a window that already has one fails with ErrAlreadyRecorded.
	SubmitProof(ctx context.Context, proof types.Proof) (types.BlockNum, error)
	// PriorSubmission returns the inclusion block of the proof recorded for
	// the deal's window, if any.
	PriorSubmission(ctx context.Context, deal types.DealID, window uint64) (types.BlockNum, bool, error)
}

// DealReader looks up deals by id.
type DealReader interface {
	GetDeal(ctx context.Context, id types.DealID) (types.Deal, error)
}
