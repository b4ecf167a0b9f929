package chain_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/fingerprint"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// fakeBackend emulates the deal contract closely enough to exercise Eth.
type fakeBackend struct {
	t   *testing.T
	abi abi.ABI

	mu             sync.Mutex
	head           uint64
	proofBlocks    map[[2]uint64]uint64
	sent           []*ethtypes.Transaction
	pendingReceipt int
	revert         bool
	callErr        error
	offer          []interface{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := chain.ParseDealsABI()
	require.NoError(t, err)
	return &fakeBackend{t: t, abi: parsed, head: 100, proofBlocks: make(map[[2]uint64]uint64)}
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if number.Uint64() > f.head {
		return nil, ethereum.NotFound
	}
	return &ethtypes.Header{Number: number, Difficulty: big.NewInt(0)}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := f.abi.MethodById(call.Data[:4])
	require.NoError(f.t, err)
	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(f.t, err)

	switch method.Name {
	case "getOffer":
		return method.Outputs.Pack(f.offer...)
	case "getProofBlock":
		key := [2]uint64{args[0].(*big.Int).Uint64(), args[1].(*big.Int).Uint64()}
		return method.Outputs.Pack(new(big.Int).SetUint64(f.proofBlocks[key]))
	}
	f.t.Fatalf("unexpected call to %s", method.Name)
	return nil, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if f.revert {
		return nil
	}
	method, err := f.abi.MethodById(tx.Data()[:4])
	require.NoError(f.t, err)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(f.t, err)
	key := [2]uint64{args[0].(*big.Int).Uint64(), args[1].(*big.Int).Uint64()}
	f.proofBlocks[key] = f.head + 1
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingReceipt > 0 {
		f.pendingReceipt--
		return nil, ethereum.NotFound
	}
	status := ethtypes.ReceiptStatusSuccessful
	if f.revert {
		status = ethtypes.ReceiptStatusFailed
	}
	return &ethtypes.Receipt{TxHash: txHash, Status: status, BlockNumber: new(big.Int).SetUint64(f.head + 1)}, nil
}

func newEth(t *testing.T, backend chain.Backend) *chain.Eth {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	e, err := chain.NewEth(backend, chain.EthConfig{
		Contract:            common.HexToAddress("0x7Da936F4A55D5044e1838Cc959935085662392F1"),
		ChainID:             big.NewInt(31337),
		PrivateKey:          key,
		ReceiptPollInterval: time.Millisecond,
		ReceiptTimeout:      time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), e.From())
	return e
}

func TestEthChainPrimitives(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(t)
	e := newEth(t, backend)

	head, err := e.CurrentBlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BlockNum(100), head)

	h, err := e.BlockHash(ctx, 50)
	require.NoError(t, err)
	require.NotEqual(t, types.Hash{}, h)

	_, err = e.BlockHash(ctx, 101)
	require.Error(t, err)
	require.True(t, types.IsRetryable(err))
}

func TestEthGetDeal(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(t)
	e := newEth(t, backend)

	content := []byte("deal content")
	id := fingerprint.CIDOf(content)
	executor := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	backend.offer = []interface{}{
		big.NewInt(3), big.NewInt(21), big.NewInt(5),
		id.String(),
		big.NewInt(int64(len(content))),
		[32]byte(fingerprint.Root(content)),
		executor,
		uint8(types.DealActive),
	}

	deal, err := e.GetDeal(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, types.DealID(7), deal.ID)
	require.Equal(t, types.DealTimeline{StartBlock: 3, LengthInBlocks: 21, ProofFrequencyInBlocks: 5}, deal.Timeline)
	require.Equal(t, id, deal.Content)
	require.Equal(t, uint64(len(content)), deal.FileSize)
	require.Equal(t, fingerprint.Root(content), deal.Root)
	require.Equal(t, executor, deal.Executor)
	require.Equal(t, types.DealActive, deal.Status)

	backend.callErr = errors.New("connection refused")
	_, err = e.GetDeal(ctx, 7)
	require.True(t, types.IsRetryable(err))
}

func TestEthSubmitProof(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(t)
	backend.pendingReceipt = 3
	e := newEth(t, backend)

	proof := types.Proof{DealID: 7, Window: 2, TargetBlock: 13, Data: types.ProofArtifact("proof bytes")}
	block, err := e.SubmitProof(ctx, proof)
	require.NoError(t, err)
	require.Equal(t, types.BlockNum(101), block)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	require.Equal(t, uint64(31337), tx.ChainId().Uint64())
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	require.Equal(t, e.From(), sender)

	args, err := backend.abi.Methods["submitProof"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Equal(t, uint64(13), args[2].(*big.Int).Uint64())
	require.True(t, bytes.Equal([]byte("proof bytes"), args[3].([]byte)))

	prior, ok, err := e.PriorSubmission(ctx, 7, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockNum(101), prior)

	t.Run("duplicate is detected before sending", func(t *testing.T) {
		block, err := e.SubmitProof(ctx, proof)
		require.ErrorIs(t, err, types.ErrAlreadyRecorded)
		require.Equal(t, types.BlockNum(101), block)
		require.Len(t, backend.sent, 1)
	})

	t.Run("reverted", func(t *testing.T) {
		backend.revert = true
		_, err := e.SubmitProof(ctx, types.Proof{DealID: 7, Window: 3, TargetBlock: 18})
		require.Error(t, err)
		require.False(t, types.IsRetryable(err))
	})
}

func TestEthReadOnly(t *testing.T) {
	e, err := chain.NewEth(newFakeBackend(t), chain.EthConfig{ChainID: big.NewInt(1)})
	require.NoError(t, err)
	_, err = e.SubmitProof(context.Background(), types.Proof{})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}
