package ownership

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/batch-sender/internal/wallet/chain"
	"golang.org/x/sync/errgroup"
)

// Scanner finds the ERC721 token ids an account owns. The enumerable extension is
// tried first; any failure there abandons it in favour of a windowed Transfer event
// scan whose candidates are reconciled with ownerOf.
type Scanner struct {
	reader      Reader
	chunkSize   uint64
	single      bool
	concurrency int
	observer    Observer
}

func NewScanner(reader Reader, opts Options) *Scanner {
	s := &Scanner{
		reader:      reader,
		chunkSize:   opts.ChunkSize,
		single:      opts.SingleQuery,
		concurrency: opts.Concurrency,
		observer:    opts.Observer,
	}

	if s.chunkSize == 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.concurrency < 1 {
		s.concurrency = DefaultConcurrency
	}

	return s
}

// Scan returns the token ids of contract currently owned by owner. window bounds the
// event scan to the last window blocks. An empty result is not an error.
func (s *Scanner) Scan(ctx context.Context, contract, owner common.Address, window uint64) (Result, error) {
	logger := log.With().Str("contract", contract.Hex()).Str("owner", owner.Hex()).Logger()

	ids, err := s.enumerate(ctx, contract, owner)
	if err == nil {
		res := Result{Strategy: StrategyEnumerable, TokenIDs: ids}
		s.completed(contract, owner, res)
		return res, nil
	}

	if ctx.Err() != nil {
		return Result{}, errors.Wrap(ErrScanFailure, ctx.Err().Error())
	}

	logger.Debug().Err(err).Msg("Enumerable strategy unavailable, falling back to event scan")

	ids, err = s.scanEvents(ctx, contract, owner, window)
	if err != nil {
		return Result{}, err
	}

	res := Result{Strategy: StrategyEventScan, TokenIDs: ids}
	s.completed(contract, owner, res)

	return res, nil
}

func (s *Scanner) completed(contract, owner common.Address, res Result) {
	log.Debug().
		Str("contract", contract.Hex()).
		Str("owner", owner.Hex()).
		Str("strategy", res.Strategy.String()).
		Int("tokens", len(res.TokenIDs)).
		Msg("Ownership scan completed")

	if s.observer != nil {
		s.observer.ScanCompleted(contract, owner, res)
	}
}

// enumerate uses balanceOf + tokenOfOwnerByIndex. Any failing call fails the strategy
// as a whole; partial results are never returned.
func (s *Scanner) enumerate(ctx context.Context, contract, owner common.Address) ([]*big.Int, error) {
	balance, err := s.reader.NFTBalanceOf(ctx, contract, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get NFT balance")
	}
	if balance.Sign() < 0 || !balance.IsInt64() || balance.Int64() > maxEnumerable {
		return nil, errors.Errorf("implausible balance %s", balance)
	}

	n := int(balance.Int64())
	ids := make([]*big.Int, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range n {
		g.Go(func() error {
			id, err := s.reader.TokenOfOwnerByIndex(gctx, contract, owner, big.NewInt(int64(i)))
			if err != nil {
				return errors.Wrapf(err, "tokenOfOwnerByIndex(%d) failed", i)
			}
			ids[i] = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return sortUnique(ids), nil
}

// scanEvents collects Transfer(*, owner, id) logs of the last window blocks and keeps
// the ids whose ownerOf is still owner.
func (s *Scanner) scanEvents(ctx context.Context, contract, owner common.Address, window uint64) ([]*big.Int, error) {
	latest, err := s.reader.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrScanFailure, "failed to get latest block: %v", err)
	}

	from := uint64(0)
	if latest > window {
		from = latest - window
	}

	ownerTopic := common.BytesToHash(owner.Bytes())
	candidates := make(map[string]*big.Int)

	for start := from; start <= latest; {
		end := latest
		if !s.single && s.chunkSize > 0 && latest-start >= s.chunkSize {
			end = start + s.chunkSize - 1
		}

		logs, err := s.reader.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{contract},
			Topics:    [][]common.Hash{{chain.TransferEventTopic}, nil, {ownerTopic}},
		})
		if err != nil {
			return nil, errors.Wrapf(ErrScanFailure, "failed to get logs for blocks %d-%d: %v", start, end, err)
		}

		for _, l := range logs {
			// ERC20 Transfer logs share the signature but carry three topics
			if l.Removed || len(l.Topics) != chain.ERC721TransferTopics || l.Topics[2] != ownerTopic {
				continue
			}
			id := new(big.Int).SetBytes(l.Topics[3].Bytes())
			candidates[id.String()] = id
		}

		if end == latest {
			break
		}
		start = end + 1
	}

	return s.reconcile(ctx, contract, owner, candidates)
}

func (s *Scanner) reconcile(ctx context.Context, contract, owner common.Address, candidates map[string]*big.Int) ([]*big.Int, error) {
	ids := make([]*big.Int, 0, len(candidates))
	for _, id := range candidates {
		ids = append(ids, id)
	}

	owned := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			current, err := s.reader.OwnerOf(ctx, contract, id)
			if err != nil {
				log.Debug().Err(err).Str("token_id", id.String()).Msg("ownerOf failed, dropping candidate")
				return nil
			}
			owned[i] = current == owner
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, errors.Wrap(ErrScanFailure, ctx.Err().Error())
	}

	res := make([]*big.Int, 0, len(ids))
	for i, id := range ids {
		if owned[i] {
			res = append(res, id)
		}
	}

	return sortUnique(res), nil
}

func sortUnique(ids []*big.Int) []*big.Int {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	res := ids[:0]
	for _, id := range ids {
		if len(res) > 0 && id.Cmp(res[len(res)-1]) == 0 {
			continue
		}
		res = append(res, id)
	}

	return res
}
