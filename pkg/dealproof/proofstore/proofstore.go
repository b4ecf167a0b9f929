// Package proofstore persists submitted proofs for audit and outboard trees
// so they survive restarts.
package proofstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/store/genericstore"
	"github.com/storacha/proofbuddy/pkg/store/objectstore"
)

var log = logging.Logger("dealproof/proofstore")

const (
	proofPrefix = "proofs/"
	treePrefix  = "trees/"
)

// Record is the audit entry for one accepted proof.
type Record struct {
	Proof types.Proof `json:"proof"`
	// Block is the block the proof was included in.
	Block      types.BlockNum   `json:"block"`
	Root       types.RootDigest `json:"root"`
	RecordedAt time.Time        `json:"recordedAt"`
}

type recordCodec struct{}

func (recordCodec) Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

func (recordCodec) Decode(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decoding proof record: %w", err)
	}
	return r, nil
}

// treeCodec stores the root digest followed by the encoded tree.
type treeCodec struct{}

func (treeCodec) Encode(t *outboard.Tree) ([]byte, error) {
	root := t.Root()
	out := make([]byte, 0, len(root)+len(t.Bytes()))
	out = append(out, root[:]...)
	return append(out, t.Bytes()...), nil
}

func (treeCodec) Decode(b []byte) (*outboard.Tree, error) {
	var root types.RootDigest
	if len(b) < len(root) {
		return nil, types.NewErrorf(types.KindShortRead, "stored tree is %d bytes", len(b))
	}
	copy(root[:], b)
	return outboard.NewTree(b[len(root):], root)
}

// Store keeps proof records and trees in an object store.
type Store struct {
	proofs *genericstore.Store[Record]
	trees  *genericstore.Store[*outboard.Tree]
}

func New(objects objectstore.Store) *Store {
	return &Store{
		proofs: genericstore.New[Record](objects, proofPrefix, recordCodec{}),
		trees:  genericstore.New[*outboard.Tree](objects, treePrefix, treeCodec{}),
	}
}

// window keys sort in window order
func proofKey(deal types.DealID, window uint64) string {
	return fmt.Sprintf("%d/%020d", uint64(deal), window)
}

func treeKey(deal types.DealID) string {
	return fmt.Sprintf("%d", uint64(deal))
}

// PutProof records an accepted proof. Recording the same window again
// replaces the earlier record.
func (s *Store) PutProof(ctx context.Context, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := s.proofs.Put(ctx, proofKey(rec.Proof.DealID, rec.Proof.Window), rec); err != nil {
		return types.Transient("recording proof", err)
	}
	log.Debugw("recorded proof", "deal", rec.Proof.DealID, "window", rec.Proof.Window, "block", rec.Block)
	return nil
}

// GetProof returns the record for a deal window, or false if none exists.
func (s *Store) GetProof(ctx context.Context, deal types.DealID, window uint64) (Record, bool, error) {
	rec, err := s.proofs.Get(ctx, proofKey(deal, window))
	if errors.Is(err, genericstore.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, types.Transient("reading proof record", err)
	}
	return rec, true, nil
}

// PutTree persists the outboard tree built for a deal.
func (s *Store) PutTree(ctx context.Context, deal types.DealID, tree *outboard.Tree) error {
	if err := s.trees.Put(ctx, treeKey(deal), tree); err != nil {
		return types.Transient("storing outboard tree", err)
	}
	return nil
}

// GetTree returns the persisted tree for a deal, or false if none exists.
// A stored tree that no longer decodes is reported as missing so it gets
// rebuilt.
func (s *Store) GetTree(ctx context.Context, deal types.DealID) (*outboard.Tree, bool, error) {
	tree, err := s.trees.Get(ctx, treeKey(deal))
	switch {
	case errors.Is(err, genericstore.ErrNotFound):
		return nil, false, nil
	case err != nil && types.KindOf(err) != types.KindOther:
		log.Warnw("discarding unreadable outboard tree", "deal", deal, "error", err)
		return nil, false, nil
	case err != nil:
		return nil, false, types.Transient("reading outboard tree", err)
	}
	return tree, true, nil
}

// RecordProof stores the audit record for a proof included at block.
func (s *Store) RecordProof(ctx context.Context, proof types.Proof, block types.BlockNum, root types.RootDigest) error {
	return s.PutProof(ctx, Record{Proof: proof, Block: block, Root: root})
}

// DeleteTree removes the persisted tree of a deal. Deleting a missing tree is
// not an error.
func (s *Store) DeleteTree(ctx context.Context, deal types.DealID) error {
	if err := s.trees.Delete(ctx, treeKey(deal)); err != nil && !errors.Is(err, objectstore.ErrNotExist) {
		return types.Transient("deleting outboard tree", err)
	}
	return nil
}
