package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ipfs/go-cid"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var (
	_ API        = (*Eth)(nil)
	_ DealReader = (*Eth)(nil)
)

// Backend is the subset of ethclient.Client used by Eth.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

type EthConfig struct {
	Contract common.Address
	ChainID  *big.Int
	// PrivateKey signs proof submissions. Without it Eth is read only.
	PrivateKey *ecdsa.PrivateKey
	// ReceiptPollInterval and ReceiptTimeout bound the wait for inclusion.
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

// Eth talks to the deal contract over JSON-RPC.
type Eth struct {
	backend Backend
	cfg     EthConfig
	abi     abi.ABI
	from    common.Address
	signer  ethtypes.Signer
	// serializes nonce assignment across concurrent submissions
	sendMu sync.Mutex
}

// DialEth connects to endpoint. Close releases the connection.
func DialEth(ctx context.Context, endpoint string, cfg EthConfig) (*Eth, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("dialing %s", endpoint), err)
	}
	e, err := NewEth(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return e, nil
}

// Close closes the backend if it holds a connection.
func (e *Eth) Close() error {
	if c, ok := e.backend.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func NewEth(backend Backend, cfg EthConfig) (*Eth, error) {
	parsed, err := ParseDealsABI()
	if err != nil {
		return nil, fmt.Errorf("parsing deals ABI: %w", err)
	}
	if cfg.ChainID == nil {
		return nil, types.NewError(types.KindInvalidInput, "chain id is required")
	}
	if cfg.ReceiptPollInterval == 0 {
		cfg.ReceiptPollInterval = 2 * time.Second
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	e := &Eth{
		backend: backend,
		cfg:     cfg,
		abi:     parsed,
		signer:  ethtypes.LatestSignerForChainID(cfg.ChainID),
	}
	if cfg.PrivateKey != nil {
		e.from = crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)
	}
	return e, nil
}

// From returns the submitting account, the zero address when read only.
func (e *Eth) From() common.Address {
	return e.from
}

func (e *Eth) CurrentBlockNumber(ctx context.Context) (types.BlockNum, error) {
	n, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return 0, types.Transient("reading block number", err)
	}
	return types.BlockNum(n), nil
}

func (e *Eth) BlockHash(ctx context.Context, n types.BlockNum) (types.Hash, error) {
	header, err := e.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(uint64(n)))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return types.Hash{}, types.NewErrorf(types.KindTransientIO, "block %d not yet available", n)
		}
		return types.Hash{}, types.Transient(fmt.Sprintf("reading block %d", n), err)
	}
	return header.Hash(), nil
}

func (e *Eth) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.cfg.Contract, Data: data}, nil)
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("calling %s", method), err)
	}
	res, err := e.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	return res, nil
}

func (e *Eth) GetDeal(ctx context.Context, id types.DealID) (types.Deal, error) {
	res, err := e.call(ctx, "getOffer", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return types.Deal{}, err
	}
	if len(res) != 8 {
		return types.Deal{}, fmt.Errorf("getOffer returned %d values", len(res))
	}
	deal := types.Deal{ID: id}
	var ok bool
	var start, length, freq, size *big.Int
	var cidStr string
	var status uint8
	if start, ok = res[0].(*big.Int); !ok {
		return types.Deal{}, fmt.Errorf("unexpected dealStartBlock type %T", res[0])
	}
	if length, ok = res[1].(*big.Int); !ok {
		return types.Deal{}, fmt.Errorf("unexpected dealLengthInBlocks type %T", res[1])
	}
	if freq, ok = res[2].(*big.Int); !ok {
		return types.Deal{}, fmt.Errorf("unexpected proofFrequencyInBlocks type %T", res[2])
	}
	if cidStr, ok = res[3].(string); !ok {
		return types.Deal{}, fmt.Errorf("unexpected ipfsFileCid type %T", res[3])
	}
	if size, ok = res[4].(*big.Int); !ok {
		return types.Deal{}, fmt.Errorf("unexpected fileSize type %T", res[4])
	}
	var root [32]byte
	if root, ok = res[5].([32]byte); !ok {
		return types.Deal{}, fmt.Errorf("unexpected blake3Checksum type %T", res[5])
	}
	if deal.Executor, ok = res[6].(common.Address); !ok {
		return types.Deal{}, fmt.Errorf("unexpected executorAddress type %T", res[6])
	}
	if status, ok = res[7].(uint8); !ok {
		return types.Deal{}, fmt.Errorf("unexpected dealStatus type %T", res[7])
	}
	for _, v := range []*big.Int{start, length, freq, size} {
		if !v.IsUint64() {
			return types.Deal{}, types.NewErrorf(types.KindOverflow, "deal %s field %s exceeds 64 bits", id, v)
		}
	}

	deal.Timeline = types.DealTimeline{
		StartBlock:             types.BlockNum(start.Uint64()),
		LengthInBlocks:         types.BlockNum(length.Uint64()),
		ProofFrequencyInBlocks: types.BlockNum(freq.Uint64()),
	}
	deal.FileSize = size.Uint64()
	deal.Root = types.RootDigest(root)
	deal.Status = types.DealStatus(status)
	if cidStr != "" {
		if deal.Content, err = cid.Decode(cidStr); err != nil {
			return types.Deal{}, types.WrapError(types.KindInvalidInput, fmt.Sprintf("deal %s content id", id), err)
		}
	}
	return deal, nil
}

func (e *Eth) PriorSubmission(ctx context.Context, deal types.DealID, idx uint64) (types.BlockNum, bool, error) {
	res, err := e.call(ctx, "getProofBlock", new(big.Int).SetUint64(uint64(deal)), new(big.Int).SetUint64(idx))
	if err != nil {
		return 0, false, err
	}
	block, ok := res[0].(*big.Int)
	if !ok {
		return 0, false, fmt.Errorf("unexpected getProofBlock type %T", res[0])
	}
	if block.Sign() == 0 {
		return 0, false, nil
	}
	return types.BlockNum(block.Uint64()), true, nil
}

func (e *Eth) SubmitProof(ctx context.Context, proof types.Proof) (types.BlockNum, error) {
	if e.cfg.PrivateKey == nil {
		return 0, types.NewError(types.KindInvalidInput, "no private key configured for proof submission")
	}
	if block, ok, err := e.PriorSubmission(ctx, proof.DealID, proof.Window); err != nil {
		return 0, err
	} else if ok {
		return block, types.WrapError(types.KindAlreadyRecorded,
			fmt.Sprintf("deal %s window %d", proof.DealID, proof.Window), fmt.Errorf("included at block %d", block))
	}

	data, err := e.abi.Pack("submitProof",
		new(big.Int).SetUint64(uint64(proof.DealID)),
		new(big.Int).SetUint64(proof.Window),
		new(big.Int).SetUint64(uint64(proof.TargetBlock)),
		[]byte(proof.Data),
	)
	if err != nil {
		return 0, fmt.Errorf("packing submitProof: %w", err)
	}

	txHash, err := e.send(ctx, data)
	if err != nil {
		return 0, err
	}
	log.Infow("sent proof", "proof", proof, "tx", txHash)

	receipt, err := e.waitReceipt(ctx, txHash)
	if err != nil {
		return 0, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		// a concurrent submission for the same window reverts ours
		if block, ok, perr := e.PriorSubmission(ctx, proof.DealID, proof.Window); perr == nil && ok {
			return block, types.WrapError(types.KindAlreadyRecorded,
				fmt.Sprintf("deal %s window %d", proof.DealID, proof.Window), fmt.Errorf("included at block %d", block))
		}
		return 0, fmt.Errorf("proof transaction %s reverted in block %s", txHash, receipt.BlockNumber)
	}
	return types.BlockNum(receipt.BlockNumber.Uint64()), nil
}

func (e *Eth) send(ctx context.Context, data []byte) (common.Hash, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return common.Hash{}, types.Transient("reading nonce", err)
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, types.Transient("suggesting gas price", err)
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{From: e.from, To: &e.cfg.Contract, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
	}
	tx := ethtypes.NewTransaction(nonce, e.cfg.Contract, big.NewInt(0), gas, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, e.signer, e.cfg.PrivateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, types.Transient("sending transaction", err)
	}
	return signed.Hash(), nil
}

func (e *Eth) waitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := backoff.Retry(ctx, func() (*ethtypes.Receipt, error) {
		r, err := e.backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			log.Debugw("waiting for receipt", "tx", txHash, "error", err)
			return nil, err
		}
		return r, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.ReceiptPollInterval)), backoff.WithMaxElapsedTime(e.cfg.ReceiptTimeout))
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("waiting for receipt of %s", txHash), err)
	}
	return receipt, nil
}
