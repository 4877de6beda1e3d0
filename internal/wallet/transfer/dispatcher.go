package transfer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/signer"
)

const (
	// NativeTransferGas is the gas of a plain value transfer.
	NativeTransferGas uint64 = 21000

	defaultERC20GasLimit  uint64 = 120000
	defaultERC721GasLimit uint64 = 250000
	gasBufferPercent      uint64 = 120

	defaultConfirmTimeout = 2 * time.Minute
)

// ChainClient is the part of the chain client a ChainDispatcher needs.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	FeeQuote(ctx context.Context) (chain.FeeQuote, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainDispatcher signs and broadcasts a request and waits for its receipt.
// Transactions of one sender are built and broadcast one at a time so that pending
// nonces do not collide.
type ChainDispatcher struct {
	client         ChainClient
	signer         signer.Service
	confirmTimeout time.Duration

	mu     sync.Mutex
	nonces map[common.Address]*sync.Mutex
}

func NewChainDispatcher(client ChainClient, signerService signer.Service, confirmTimeout time.Duration) *ChainDispatcher {
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}

	return &ChainDispatcher{
		client:         client,
		signer:         signerService,
		confirmTimeout: confirmTimeout,
		nonces:         make(map[common.Address]*sync.Mutex),
	}
}

// Send performs one attempt. A mined receipt with status 0 is reported as ErrTransferFailure.
func (d *ChainDispatcher) Send(ctx context.Context, req *Request) (common.Hash, error) {
	if req.From == nil {
		return common.Hash{}, errors.Wrap(ErrTransferFailure, "request has no sender")
	}

	txHash, err := d.broadcast(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}

	util.LogFromContext(ctx).Debug().
		Str("request_id", req.ID.String()).
		Str("tx_hash", txHash.Hex()).
		Msg("Transaction broadcast, waiting for receipt")

	waitCtx, cancel := context.WithTimeout(ctx, d.confirmTimeout)
	defer cancel()

	receipt, err := d.client.WaitForReceipt(waitCtx, txHash)
	if err != nil {
		return txHash, errors.Wrapf(err, "failed to confirm transaction %s", txHash.Hex())
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, errors.Wrapf(ErrTransferFailure, "transaction %s reverted in block %s", txHash.Hex(), receipt.BlockNumber)
	}

	return txHash, nil
}

// broadcast holds the sender's nonce lock from nonce lookup until the node accepted the tx.
func (d *ChainDispatcher) broadcast(ctx context.Context, req *Request) (common.Hash, error) {
	lock := d.nonceLock(req.From.Address)
	lock.Lock()
	defer lock.Unlock()

	skel, err := d.buildSkeleton(req)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := d.client.PendingNonceAt(ctx, skel.From)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}
	skel.Nonce = nonce

	fee, err := d.feeQuote(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}

	skel.GasLimit = req.GasLimit
	if skel.GasLimit == 0 {
		skel.GasLimit = d.gasLimit(ctx, req, skel)
	}

	signed, err := d.signer.Sign(ctx, req.From.Key(), skel, fee)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	if err := d.client.SendTransaction(ctx, signed.Tx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to broadcast transaction")
	}

	return signed.Hash(), nil
}

func (d *ChainDispatcher) buildSkeleton(req *Request) (*signer.TxSkeleton, error) {
	skel := &signer.TxSkeleton{From: req.From.Address}

	switch req.Asset.Type {
	case AssetNative:
		if req.Amount == nil || req.Amount.Sign() <= 0 {
			return nil, errors.Wrap(ErrTransferFailure, "amount must be positive")
		}
		skel.To = req.To
		skel.Value = new(big.Int).Set(req.Amount)

	case AssetFungibleToken:
		if req.Amount == nil || req.Amount.Sign() <= 0 {
			return nil, errors.Wrap(ErrTransferFailure, "amount must be positive")
		}
		data, err := chain.PackERC20Transfer(req.To, req.Amount)
		if err != nil {
			return nil, err
		}
		skel.To = req.Asset.Contract
		skel.Data = data

	case AssetNonFungibleToken:
		if req.Asset.TokenID == nil {
			return nil, errors.Wrap(ErrTransferFailure, "token id is required")
		}
		data, err := chain.PackERC721SafeTransferFrom(req.From.Address, req.To, req.Asset.TokenID)
		if err != nil {
			return nil, err
		}
		skel.To = req.Asset.Contract
		skel.Data = data

	default:
		return nil, errors.Wrapf(ErrTransferFailure, "unsupported asset type %d", req.Asset.Type)
	}

	return skel, nil
}

func (d *ChainDispatcher) feeQuote(ctx context.Context, req *Request) (chain.FeeQuote, error) {
	if req.Fee != nil {
		return *req.Fee, nil
	}

	fee, err := d.client.FeeQuote(ctx)
	if err != nil {
		return chain.FeeQuote{}, errors.Wrap(err, "failed to get fee quote")
	}

	return fee, nil
}

// gasLimit estimates with a 20% buffer and falls back to fixed limits.
func (d *ChainDispatcher) gasLimit(ctx context.Context, req *Request, skel *signer.TxSkeleton) uint64 {
	if req.Asset.Type == AssetNative {
		return EstimateNativeGas(ctx, d.client, skel.From, skel.To, skel.Value)
	}

	fallback := defaultERC20GasLimit
	if req.Asset.Type == AssetNonFungibleToken {
		fallback = defaultERC721GasLimit
	}

	to := skel.To
	estimated, err := d.client.EstimateGas(ctx, ethereum.CallMsg{
		From: skel.From,
		To:   &to,
		Data: skel.Data,
	})
	if err != nil || estimated == 0 {
		util.LogFromContext(ctx).Warn().
			Err(err).
			Str("request_id", req.ID.String()).
			Uint64("gas_limit", fallback).
			Msg("Gas estimation failed, using default gas limit")
		return fallback
	}

	return estimated * gasBufferPercent / 100
}

// GasEstimator estimates the gas of a call, see chain.Client.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// EstimateNativeGas returns the gas limit of a value transfer from -> to. Plain
// accounts cost NativeTransferGas; recipients with code get their estimate plus 20%.
// A failed estimate falls back to NativeTransferGas.
func EstimateNativeGas(ctx context.Context, estimator GasEstimator, from, to common.Address, value *big.Int) uint64 {
	estimated, err := estimator.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
	})
	if err != nil || estimated == 0 {
		util.LogFromContext(ctx).Warn().
			Err(err).
			Str("from", from.Hex()).
			Str("to", to.Hex()).
			Uint64("gas_limit", NativeTransferGas).
			Msg("Gas estimation failed, using plain transfer gas")
		return NativeTransferGas
	}

	if estimated <= NativeTransferGas {
		return NativeTransferGas
	}

	return estimated * gasBufferPercent / 100
}

func (d *ChainDispatcher) nonceLock(address common.Address) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.nonces[address]
	if !ok {
		lock = &sync.Mutex{}
		d.nonces[address] = lock
	}

	return lock
}
