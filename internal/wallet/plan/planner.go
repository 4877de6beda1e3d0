package plan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/amount"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/transfer"
	"golang.org/x/sync/errgroup"
)

const defaultLookupConcurrency = 8

// Planner turns user intent (senders, recipients, amount directive) into transfer
// requests. Balances and fees are read once, at plan time.
type Planner struct {
	chain    ChainReader
	decimals DecimalsSource
	scanner  OwnershipScanner
}

func NewPlanner(chainReader ChainReader, decimals DecimalsSource, scanner OwnershipScanner) *Planner {
	return &Planner{
		chain:    chainReader,
		decimals: decimals,
		scanner:  scanner,
	}
}

// NativeOneToMany sends value to every recipient. ALL splits the balance, minus the
// gas of every transfer, equally.
func (p *Planner) NativeOneToMany(ctx context.Context, sender *account.Account, recipients []common.Address, value string) (*Plan, error) {
	if len(recipients) == 0 {
		return nil, amount.ErrInvalidRecipientCount
	}

	if amount.IsAll(value) {
		return p.nativeSplitAll(ctx, transfer.KindNativeOneToMany, sender, recipients, nil)
	}

	perRecipient, err := amount.ResolveFixedAmount(value, amount.NativeDecimals)
	if err != nil {
		return nil, err
	}

	pl := &Plan{}
	for _, to := range recipients {
		req := transfer.NewRequest(transfer.KindNativeOneToMany, sender, to, transfer.Native(), new(big.Int).Set(perRecipient))
		p.addOrSkipZero(ctx, pl, req)
	}

	return pl, nil
}

// TokenOneToMany sends value tokens to every recipient. ALL splits the token balance equally.
func (p *Planner) TokenOneToMany(ctx context.Context, sender *account.Account, token common.Address, recipients []common.Address, value string) (*Plan, error) {
	if len(recipients) == 0 {
		return nil, amount.ErrInvalidRecipientCount
	}

	decimals := p.decimals.Decimals(ctx, token)
	asset := transfer.FungibleToken(token, decimals)

	if amount.IsAll(value) {
		return p.tokenSplitAll(ctx, transfer.KindTokenOneToMany, sender, asset, recipients, nil)
	}

	perRecipient, err := amount.ResolveFixedAmount(value, decimals)
	if err != nil {
		return nil, err
	}

	pl := &Plan{}
	for _, to := range recipients {
		req := transfer.NewRequest(transfer.KindTokenOneToMany, sender, to, asset, new(big.Int).Set(perRecipient))
		p.addOrSkipZero(ctx, pl, req)
	}

	return pl, nil
}

// NativeManyToOne sends the maximum sendable balance of every sender to receiver.
func (p *Planner) NativeManyToOne(ctx context.Context, senders []*account.Account, receiver common.Address) (*Plan, error) {
	if len(senders) == 0 {
		return nil, errors.Wrap(amount.ErrInvalidRecipientCount, "no senders")
	}

	fee, err := p.chain.FeeQuote(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee quote")
	}

	balances := p.lookup(ctx, senders, func(ctx context.Context, a *account.Account) (*big.Int, error) {
		return p.chain.BalanceAt(ctx, a.Address)
	})

	pl := &Plan{}
	for i, sender := range senders {
		req := transfer.NewRequest(transfer.KindNativeManyToOne, sender, receiver, transfer.Native(), nil)

		b := balances[i]
		switch {
		case b.err != nil:
			p.skip(ctx, pl, req, errors.Wrap(b.err, "failed to get balance"))
		case b.value == nil || b.value.Sign() == 0:
			p.skip(ctx, pl, req, ErrZeroBalance)
		default:
			gas := transfer.EstimateNativeGas(ctx, p.chain, sender.Address, receiver, nil)
			maxSend := amount.ResolveMaxSendableNative(b.value, gas, fee.CostPerGas())
			if maxSend.Sign() == 0 {
				p.skip(ctx, pl, req, ErrInsufficientForGas)
				continue
			}
			req.Amount = maxSend
			pin(req, fee, gas)
			pl.add(req)
		}
	}

	return pl, nil
}

// TokenManyToOne sends the whole token balance of every sender to receiver.
func (p *Planner) TokenManyToOne(ctx context.Context, senders []*account.Account, token, receiver common.Address) (*Plan, error) {
	if len(senders) == 0 {
		return nil, errors.Wrap(amount.ErrInvalidRecipientCount, "no senders")
	}

	asset := transfer.FungibleToken(token, p.decimals.Decimals(ctx, token))

	balances := p.lookup(ctx, senders, func(ctx context.Context, a *account.Account) (*big.Int, error) {
		return p.chain.TokenBalance(ctx, token, a.Address)
	})

	pl := &Plan{}
	for i, sender := range senders {
		req := transfer.NewRequest(transfer.KindTokenManyToOne, sender, receiver, asset, nil)

		b := balances[i]
		switch {
		case b.err != nil:
			p.skip(ctx, pl, req, errors.Wrap(b.err, "failed to get token balance"))
		case b.value == nil || b.value.Sign() == 0:
			p.skip(ctx, pl, req, ErrZeroBalance)
		default:
			req.Amount = b.value
			pl.add(req)
		}
	}

	return pl, nil
}

// Split divides total (or ALL) between recipients, equally when ratios is nil.
// A nil token splits the native coin.
func (p *Planner) Split(
	ctx context.Context,
	sender *account.Account,
	recipients []common.Address,
	token *common.Address,
	total string,
	ratios []*big.Int,
) (*Plan, error) {
	if len(recipients) == 0 {
		return nil, amount.ErrInvalidRecipientCount
	}
	if ratios != nil && len(ratios) != len(recipients) {
		return nil, errors.Wrapf(amount.ErrRatioCountMismatch, "%d ratios for %d recipients", len(ratios), len(recipients))
	}

	if token == nil {
		if amount.IsAll(total) {
			return p.nativeSplitAll(ctx, transfer.KindNativeSplit, sender, recipients, ratios)
		}

		value, err := amount.ResolveFixedAmount(total, amount.NativeDecimals)
		if err != nil {
			return nil, err
		}

		return p.split(ctx, transfer.KindNativeSplit, sender, transfer.Native(), recipients, value, ratios)
	}

	asset := transfer.FungibleToken(*token, p.decimals.Decimals(ctx, *token))
	if amount.IsAll(total) {
		return p.tokenSplitAll(ctx, transfer.KindTokenSplit, sender, asset, recipients, ratios)
	}

	value, err := amount.ResolveFixedAmount(total, asset.Decimals)
	if err != nil {
		return nil, err
	}

	return p.split(ctx, transfer.KindTokenSplit, sender, asset, recipients, value, ratios)
}

// NFTSweep moves every token of contract owned by the senders to receiver. A sender
// whose scan fails is recorded as skipped and the sweep continues.
func (p *Planner) NFTSweep(ctx context.Context, senders []*account.Account, contract, receiver common.Address, window uint64) (*Plan, error) {
	if len(senders) == 0 {
		return nil, errors.Wrap(amount.ErrInvalidRecipientCount, "no senders")
	}

	pl := &Plan{}
	for _, sender := range senders {
		res, err := p.scanner.Scan(ctx, contract, sender.Address, window)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "ownership scan canceled")
			}
			req := transfer.NewRequest(transfer.KindNFTSweep, sender, receiver, transfer.NonFungibleToken(contract, nil), nil)
			p.skip(ctx, pl, req, err)
			continue
		}

		if len(res.TokenIDs) == 0 {
			util.LogFromContext(ctx).Info().
				Str("owner", sender.String()).
				Str("contract", contract.Hex()).
				Str("strategy", res.Strategy.String()).
				Msg("No tokens found")
			continue
		}

		for _, id := range res.TokenIDs {
			pl.add(transfer.NewRequest(transfer.KindNFTSweep, sender, receiver, transfer.NonFungibleToken(contract, id), nil))
		}
	}

	return pl, nil
}

func (p *Planner) nativeSplitAll(
	ctx context.Context,
	kind transfer.Kind,
	sender *account.Account,
	recipients []common.Address,
	ratios []*big.Int,
) (*Plan, error) {
	balance, err := p.chain.BalanceAt(ctx, sender.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}

	fee, err := p.chain.FeeQuote(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee quote")
	}

	gas := make([]uint64, len(recipients))
	var gasUnits uint64
	for i, to := range recipients {
		gas[i] = transfer.EstimateNativeGas(ctx, p.chain, sender.Address, to, nil)
		gasUnits += gas[i]
	}
	total := amount.ResolveMaxSendableNative(balance, gasUnits, fee.CostPerGas())

	if total.Sign() == 0 {
		reason := ErrInsufficientForGas
		if balance.Sign() == 0 {
			reason = ErrZeroBalance
		}
		return p.skipAll(ctx, kind, sender, transfer.Native(), recipients, reason), nil
	}

	pl, err := p.split(ctx, kind, sender, transfer.Native(), recipients, total, ratios)
	if err != nil {
		return nil, err
	}

	// split indexes items by recipient position, skipped zero shares included
	for _, req := range pl.Requests {
		pin(req, fee, gas[req.Index])
	}

	return pl, nil
}

// pin fixes the fee quote and gas limit a max-sendable amount was resolved with.
func pin(req *transfer.Request, fee chain.FeeQuote, gas uint64) {
	req.Fee = &fee
	req.GasLimit = gas
}

func (p *Planner) tokenSplitAll(
	ctx context.Context,
	kind transfer.Kind,
	sender *account.Account,
	asset transfer.Asset,
	recipients []common.Address,
	ratios []*big.Int,
) (*Plan, error) {
	balance, err := p.chain.TokenBalance(ctx, asset.Contract, sender.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get token balance")
	}

	if balance.Sign() == 0 {
		return p.skipAll(ctx, kind, sender, asset, recipients, ErrZeroBalance), nil
	}

	return p.split(ctx, kind, sender, asset, recipients, balance, ratios)
}

func (p *Planner) split(
	ctx context.Context,
	kind transfer.Kind,
	sender *account.Account,
	asset transfer.Asset,
	recipients []common.Address,
	total *big.Int,
	ratios []*big.Int,
) (*Plan, error) {
	shares, err := amount.ResolveSplitPlan(total, len(recipients), ratios)
	if err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Debug().
		Str("kind", string(kind)).
		Str("total", amount.FormatUnits(total, asset.Decimals)).
		Int("recipients", len(recipients)).
		Msg("Resolved split plan")

	pl := &Plan{}
	for i, to := range recipients {
		p.addOrSkipZero(ctx, pl, transfer.NewRequest(kind, sender, to, asset, shares[i]))
	}

	return pl, nil
}

func (p *Planner) skipAll(
	ctx context.Context,
	kind transfer.Kind,
	sender *account.Account,
	asset transfer.Asset,
	recipients []common.Address,
	reason error,
) *Plan {
	pl := &Plan{}
	for _, to := range recipients {
		p.skip(ctx, pl, transfer.NewRequest(kind, sender, to, asset, nil), reason)
	}

	return pl
}

func (p *Planner) addOrSkipZero(ctx context.Context, pl *Plan, req *transfer.Request) {
	if req.Amount == nil || req.Amount.Sign() == 0 {
		p.skip(ctx, pl, req, ErrZeroAmount)
		return
	}

	pl.add(req)
}

func (p *Planner) skip(ctx context.Context, pl *Plan, req *transfer.Request, reason error) {
	util.LogFromContext(ctx).Warn().
		Err(reason).
		Str("kind", string(req.Kind)).
		Str("from", req.From.String()).
		Str("to", req.To.Hex()).
		Msg("Transfer skipped")

	pl.skip(req, reason)
}

type balanceResult struct {
	value *big.Int
	err   error
}

// lookup reads one balance per account in parallel, preserving order.
func (p *Planner) lookup(
	ctx context.Context,
	accounts []*account.Account,
	fn func(ctx context.Context, a *account.Account) (*big.Int, error),
) []balanceResult {
	results := make([]balanceResult, len(accounts))

	var g errgroup.Group
	g.SetLimit(defaultLookupConcurrency)
	for i, a := range accounts {
		g.Go(func() error {
			value, err := fn(ctx, a)
			results[i] = balanceResult{value: value, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
