package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/dealproof/window"
)

var (
	_ API        = (*Memory)(nil)
	_ DealReader = (*Memory)(nil)
)

type submissionKey struct {
	deal   types.DealID
	window uint64
}

// Submission is a proof accepted by the Memory chain.
type Submission struct {
	Proof types.Proof
	Block types.BlockNum
}

// Memory is an in-process chain. Block hashes default to the keccak hash of
// the block number. Submitted proofs are checked the way the deal contract
// checks them: the target must be the window's target, the window must still
// be open, and when the deal records a root digest the proof must answer the
// window's challenge.
type Memory struct {
	mu          sync.Mutex
	head        types.BlockNum
	hashes      map[types.BlockNum]types.Hash
	deals       map[types.DealID]types.Deal
	submissions map[submissionKey]Submission
	submitCalls int
}

func NewMemory(head types.BlockNum) *Memory {
	return &Memory{
		head:        head,
		hashes:      make(map[types.BlockNum]types.Hash),
		deals:       make(map[types.DealID]types.Deal),
		submissions: make(map[submissionKey]Submission),
	}
}

func (m *Memory) AddDeal(deal types.Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[deal.ID] = deal
}

func (m *Memory) SetHead(n types.BlockNum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = n
}

// Advance moves the head forward by n blocks.
func (m *Memory) Advance(n types.BlockNum) types.BlockNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head += n
	return m.head
}

// SetBlockHash overrides the hash of block n.
func (m *Memory) SetBlockHash(n types.BlockNum, h types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[n] = h
}

func (m *Memory) CurrentBlockNumber(ctx context.Context) (types.BlockNum, error) {
	if err := ctx.Err(); err != nil {
		return 0, types.Transient("reading head", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head, nil
}

func (m *Memory) BlockHash(ctx context.Context, n types.BlockNum) (types.Hash, error) {
	if err := ctx.Err(); err != nil {
		return types.Hash{}, types.Transient("reading block hash", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockHashLocked(n)
}

func (m *Memory) blockHashLocked(n types.BlockNum) (types.Hash, error) {
	if n > m.head {
		return types.Hash{}, types.NewErrorf(types.KindTransientIO, "block %d not yet available, head is %d", n, m.head)
	}
	if h, ok := m.hashes[n]; ok {
		return h, nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return crypto.Keccak256Hash(buf[:]), nil
}

func (m *Memory) GetDeal(ctx context.Context, id types.DealID) (types.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deal, ok := m.deals[id]
	if !ok {
		return types.Deal{}, types.NewErrorf(types.KindInvalidInput, "deal %s does not exist", id)
	}
	return deal, nil
}

func (m *Memory) SubmitProof(ctx context.Context, proof types.Proof) (types.BlockNum, error) {
	if err := ctx.Err(); err != nil {
		return 0, types.Transient("submitting proof", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++

	deal, ok := m.deals[proof.DealID]
	if !ok {
		return 0, types.NewErrorf(types.KindInvalidInput, "deal %s does not exist", proof.DealID)
	}
	key := submissionKey{deal: proof.DealID, window: proof.Window}
	if prior, ok := m.submissions[key]; ok {
		return prior.Block, types.WrapError(types.KindAlreadyRecorded,
			fmt.Sprintf("deal %s window %d", proof.DealID, proof.Window),
			fmt.Errorf("included at block %d", prior.Block))
	}

	w, err := window.Window(deal.Timeline, proof.Window)
	if err != nil {
		return 0, err
	}
	if w.TargetBlock != proof.TargetBlock {
		return 0, types.NewErrorf(types.KindInvalidInput, "window %d targets block %d, proof claims %d", w.Index, w.TargetBlock, proof.TargetBlock)
	}
	if m.head >= w.ExpiryBlock {
		return 0, types.WrapError(types.KindWindowExpired,
			fmt.Sprintf("deal %s window %d", proof.DealID, proof.Window),
			fmt.Errorf("expired at block %d, head is %d", w.ExpiryBlock, m.head))
	}
	if !deal.Root.IsZero() {
		if err := m.verifyLocked(deal, proof); err != nil {
			return 0, err
		}
	}

	m.submissions[key] = Submission{Proof: proof, Block: m.head}
	log.Debugw("recorded proof", "proof", proof, "block", m.head)
	return m.head, nil
}

func (m *Memory) verifyLocked(deal types.Deal, proof types.Proof) error {
	h, err := m.blockHashLocked(proof.TargetBlock)
	if err != nil {
		return err
	}
	c, err := challenge.Derive(h, deal.FileSize)
	if err != nil {
		return err
	}
	if !outboard.VerifySlice(proof.Data, deal.Root, c.Offset, c.Size) {
		return types.WrapError(types.KindProofVerificationFailed,
			fmt.Sprintf("deal %s window %d", proof.DealID, proof.Window), fmt.Errorf("proof does not answer %s", c))
	}
	return nil
}

func (m *Memory) PriorSubmission(ctx context.Context, deal types.DealID, idx uint64) (types.BlockNum, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, types.Transient("reading prior submission", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionKey{deal: deal, window: idx}]
	return s.Block, ok, nil
}

// Submissions returns the proofs recorded for deal in window order.
func (m *Memory) Submissions(deal types.DealID) []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Submission
	for k, s := range m.submissions {
		if k.deal == deal {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Proof.Window < out[j].Proof.Window })
	return out
}

// SubmitCalls returns how many times SubmitProof was called.
func (m *Memory) SubmitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCalls
}
