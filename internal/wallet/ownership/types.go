package ownership

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// ErrScanFailure wraps transport errors of the event scan (block number, log queries).
var ErrScanFailure = errors.New("ownership scan failed")

const (
	DefaultWindow      uint64 = 200_000
	DefaultChunkSize   uint64 = 10_000
	DefaultConcurrency        = 8

	// maxEnumerable bounds the balanceOf value trusted by the enumerable strategy.
	maxEnumerable = 100_000
)

// Strategy names the discovery strategy that produced a Result.
type Strategy int

const (
	StrategyEnumerable Strategy = iota + 1
	StrategyEventScan
)

func (s Strategy) String() string {
	switch s {
	case StrategyEnumerable:
		return "enumerable"
	case StrategyEventScan:
		return "event_scan"
	default:
		return "unknown"
	}
}

// Result lists the token ids an owner holds, ascending, and how they were found.
type Result struct {
	Strategy Strategy
	TokenIDs []*big.Int
}

// Reader is the part of the chain client the scanner needs.
type Reader interface {
	NFTBalanceOf(ctx context.Context, contract, owner common.Address) (*big.Int, error)
	TokenOfOwnerByIndex(ctx context.Context, contract, owner common.Address, index *big.Int) (*big.Int, error)
	OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// Observer is notified about finished scans.
type Observer interface {
	ScanCompleted(contract, owner common.Address, result Result)
}

// Options tunes a Scanner. Zero values select the defaults.
type Options struct {
	ChunkSize   uint64 // blocks per log query; 0 selects DefaultChunkSize
	SingleQuery bool   // query the whole window at once, ignoring ChunkSize
	Concurrency int    // parallel per-token calls
	Observer    Observer
}
