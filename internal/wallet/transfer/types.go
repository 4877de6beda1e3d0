package transfer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/amount"
	"github/chapool/batch-sender/internal/wallet/chain"
)

// ErrTransferFailure marks a request that did not end with a successful receipt.
var ErrTransferFailure = errors.New("transfer failed")

// AssetType distinguishes what a request moves.
type AssetType int

const (
	AssetNative AssetType = iota + 1
	AssetFungibleToken
	AssetNonFungibleToken
)

func (t AssetType) String() string {
	switch t {
	case AssetNative:
		return "native"
	case AssetFungibleToken:
		return "erc20"
	case AssetNonFungibleToken:
		return "erc721"
	default:
		return "unknown"
	}
}

// Asset describes the native coin, an ERC20 token or one ERC721 token.
type Asset struct {
	Type     AssetType
	Contract common.Address // zero for native
	Decimals uint8          // native and fungible only
	TokenID  *big.Int       // non-fungible only
}

func Native() Asset {
	return Asset{Type: AssetNative, Decimals: amount.NativeDecimals}
}

func FungibleToken(contract common.Address, decimals uint8) Asset {
	return Asset{Type: AssetFungibleToken, Contract: contract, Decimals: decimals}
}

func NonFungibleToken(contract common.Address, tokenID *big.Int) Asset {
	return Asset{Type: AssetNonFungibleToken, Contract: contract, TokenID: tokenID}
}

// Kind is the label written to the type column of the result record.
type Kind string

const (
	KindNativeOneToMany Kind = "native_one2many"
	KindNativeManyToOne Kind = "native_many2one"
	KindTokenOneToMany  Kind = "erc20_one2many"
	KindTokenManyToOne  Kind = "erc20_many2one"
	KindNativeSplit     Kind = "native_split"
	KindTokenSplit      Kind = "erc20_split"
	KindNFTSweep        Kind = "erc721_sweep"
)

// Request is one transfer to perform. Index is the submission position.
type Request struct {
	Index  int
	ID     uuid.UUID
	Kind   Kind
	From   *account.Account
	To     common.Address
	Asset  Asset
	Amount *big.Int // minor units, nil for non-fungible

	// Fee and GasLimit pin what a max-sendable native amount was resolved with, so
	// every attempt reserves the same gas. nil and 0 mean quote and estimate per attempt.
	Fee      *chain.FeeQuote
	GasLimit uint64
}

// NewRequest returns a request with a fresh id.
func NewRequest(kind Kind, from *account.Account, to common.Address, asset Asset, value *big.Int) *Request {
	return &Request{
		ID:     uuid.New(),
		Kind:   kind,
		From:   from,
		To:     to,
		Asset:  asset,
		Amount: value,
	}
}

// AmountString renders the amount in whole units of the asset.
func (r *Request) AmountString() string {
	if r.Asset.Type == AssetNonFungibleToken {
		return "1"
	}
	if r.Amount == nil {
		return ""
	}

	return amount.FormatUnits(r.Amount, r.Asset.Decimals)
}

func (r *Request) String() string {
	switch r.Asset.Type {
	case AssetNonFungibleToken:
		return fmt.Sprintf("#%d %s %s -> %s token %s", r.Index, r.Kind, r.From, r.To.Hex(), r.Asset.TokenID)
	default:
		return fmt.Sprintf("#%d %s %s -> %s %s", r.Index, r.Kind, r.From, r.To.Hex(), r.AmountString())
	}
}

// Outcome is the final state of a request, emitted exactly once.
type Outcome struct {
	Request  *Request
	Success  bool
	TxHash   common.Hash // set on success
	Reason   string      // set on failure
	Err      error       // cause of a failure
	Attempts int
	Duration time.Duration
}

// Succeeded builds a successful outcome.
func Succeeded(req *Request, txHash common.Hash, attempts int, d time.Duration) Outcome {
	return Outcome{Request: req, Success: true, TxHash: txHash, Attempts: attempts, Duration: d}
}

// Failed builds a failed outcome. A nil request is not allowed.
func Failed(req *Request, err error, attempts int, d time.Duration) Outcome {
	if err == nil {
		err = ErrTransferFailure
	}

	return Outcome{Request: req, Reason: err.Error(), Err: err, Attempts: attempts, Duration: d}
}

// Status is "success" or "failure".
func (o Outcome) Status() string {
	if o.Success {
		return "success"
	}

	return "failure"
}

// Dispatcher performs a single attempt of a request: broadcast and confirmation.
type Dispatcher interface {
	Send(ctx context.Context, req *Request) (common.Hash, error)
}

// Observer receives executor events.
type Observer interface {
	AttemptFailed(req *Request, attempt int, err error)
	Completed(outcome Outcome)
}
