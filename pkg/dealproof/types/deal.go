package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
)

// DealTimeline is the block-denominated schedule of a deal.
type DealTimeline struct {
	StartBlock             BlockNum
	LengthInBlocks         BlockNum
	ProofFrequencyInBlocks BlockNum
}

func (t DealTimeline) Validate() error {
	if t.ProofFrequencyInBlocks == 0 {
		return WrapError(KindInvalidInput, "proof frequency must be greater than zero", ErrDivisionByZero)
	}
	if _, err := t.FinalBlock(); err != nil {
		return err
	}
	return nil
}

// FinalBlock is the first block at which the deal is over.
func (t DealTimeline) FinalBlock() (BlockNum, error) {
	return t.StartBlock.Add(t.LengthInBlocks)
}

// WindowStatus is the coarse state of a deal relative to the chain height.
type WindowStatus int

const (
	StatusFuture WindowStatus = iota
	StatusActive
	StatusPast
)

func (s WindowStatus) String() string {
	switch s {
	case StatusFuture:
		return "future"
	case StatusActive:
		return "active"
	case StatusPast:
		return "past"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ProofWindow identifies one proving interval of a deal.
type ProofWindow struct {
	Index       uint64
	TargetBlock BlockNum
	// ExpiryBlock is the first block at which the window can no longer be proven.
	ExpiryBlock BlockNum
}

// WindowState is the scheduler's view of a deal at a given block height.
// Window is only meaningful when Status is StatusActive.
type WindowState struct {
	Status WindowStatus
	Window ProofWindow
}

// DealStatus mirrors the status enum stored by the deal contract.
type DealStatus uint8

const (
	DealNon DealStatus = iota
	DealCreated
	DealAccepted
	DealActive
	DealCompleted
	DealFinalized
	DealTimedOut
	DealCancelled
)

func (s DealStatus) String() string {
	switch s {
	case DealNon:
		return "Non"
	case DealCreated:
		return "DealCreated"
	case DealAccepted:
		return "DealAccepted"
	case DealActive:
		return "DealActive"
	case DealCompleted:
		return "DealCompleted"
	case DealFinalized:
		return "DealFinalized"
	case DealTimedOut:
		return "DealTimedOut"
	case DealCancelled:
		return "DealCancelled"
	default:
		return fmt.Sprintf("DealStatus(%d)", uint8(s))
	}
}

// Deal is everything the proving side needs to know about one storage deal.
type Deal struct {
	ID       DealID
	Timeline DealTimeline
	Content  cid.Cid
	FileSize uint64
	// Root is the BLAKE3 hash of the file recorded at deal creation, which
	// is also the root of its outboard tree. A zero value means it is unknown
	// and will be taken from the locally built tree.
	Root RootDigest
	Executor common.Address
	Status   DealStatus
}
