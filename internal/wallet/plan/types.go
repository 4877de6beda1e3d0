package plan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/ownership"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

// Reasons of skipped items. These are recorded, never fatal.
var (
	ErrZeroBalance        = errors.New("balance 0")
	ErrInsufficientForGas = errors.New("insufficient for gas")
	ErrZeroAmount         = errors.New("amount resolves to 0")
)

// ChainReader is the part of the chain client the planner reads balances, fees and
// gas estimates from.
type ChainReader interface {
	transfer.GasEstimator

	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
	FeeQuote(ctx context.Context) (chain.FeeQuote, error)
}

// DecimalsSource resolves token decimals, see amount.DecimalsCache.
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) uint8
}

// OwnershipScanner finds the ERC721 tokens of an owner, see ownership.Scanner.
type OwnershipScanner interface {
	Scan(ctx context.Context, contract, owner common.Address, window uint64) (ownership.Result, error)
}

// Plan is the result of planning: requests to execute and items that were resolved
// to a failure up front. Indexes are unique across both.
type Plan struct {
	Requests []*transfer.Request
	Skipped  []transfer.Outcome

	next int
}

// Len is the number of items the plan reports on.
func (p *Plan) Len() int {
	return len(p.Requests) + len(p.Skipped)
}

func (p *Plan) add(req *transfer.Request) {
	req.Index = p.next
	p.next++
	p.Requests = append(p.Requests, req)
}

func (p *Plan) skip(req *transfer.Request, reason error) {
	req.Index = p.next
	p.next++
	p.Skipped = append(p.Skipped, transfer.Failed(req, reason, 0, 0))
}
