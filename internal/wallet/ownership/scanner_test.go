package ownership_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/ownership"
)

var (
	contract = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other    = common.HexToAddress("0x00000000000000000000000000000000000000bb")

	errReverted = errors.New("execution reverted")
	errDown     = errors.New("connection refused")
)

// fakeReader simulates an ERC721 contract. enumerable lists the ids reported by
// tokenOfOwnerByIndex; failIndex makes one index query fail.
type fakeReader struct {
	mu sync.Mutex

	balance    *big.Int
	balanceErr error
	enumerable []int64
	failIndex  int

	latest    uint64
	latestErr error
	logs      []types.Log
	logsErr   error
	queries   []ethereum.FilterQuery

	owners   map[int64]common.Address
	ownerErr map[int64]error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		failIndex: -1,
		owners:    map[int64]common.Address{},
		ownerErr:  map[int64]error{},
	}
}

func (f *fakeReader) NFTBalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance != nil {
		return f.balance, nil
	}

	return big.NewInt(int64(len(f.enumerable))), nil
}

func (f *fakeReader) TokenOfOwnerByIndex(_ context.Context, _, _ common.Address, index *big.Int) (*big.Int, error) {
	i := int(index.Int64())
	if i == f.failIndex {
		return nil, errReverted
	}
	if i >= len(f.enumerable) {
		return nil, errReverted
	}

	return big.NewInt(f.enumerable[i]), nil
}

func (f *fakeReader) OwnerOf(_ context.Context, _ common.Address, tokenID *big.Int) (common.Address, error) {
	if err, ok := f.ownerErr[tokenID.Int64()]; ok {
		return common.Address{}, err
	}

	return f.owners[tokenID.Int64()], nil
}

func (f *fakeReader) BlockNumber(context.Context) (uint64, error) {
	return f.latest, f.latestErr
}

func (f *fakeReader) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.logsErr != nil {
		return nil, f.logsErr
	}

	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var res []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			res = append(res, l)
		}
	}

	return res, nil
}

func nftLog(block uint64, to common.Address, id int64) types.Log {
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics: []common.Hash{
			chain.TransferEventTopic,
			common.BytesToHash(other.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	}
}

func erc20Log(block uint64, to common.Address) types.Log {
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics: []common.Hash{
			chain.TransferEventTopic,
			common.BytesToHash(other.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.BigToHash(big.NewInt(1000)).Bytes(),
	}
}

func ids(res ownership.Result) []int64 {
	out := make([]int64, len(res.TokenIDs))
	for i, id := range res.TokenIDs {
		out[i] = id.Int64()
	}

	return out
}

type recordingObserver struct {
	results []ownership.Result
}

func (r *recordingObserver) ScanCompleted(_, _ common.Address, res ownership.Result) {
	r.results = append(r.results, res)
}

func TestScanEnumerable(t *testing.T) {
	reader := newFakeReader()
	reader.enumerable = []int64{9, 3, 5}

	observer := &recordingObserver{}
	scanner := ownership.NewScanner(reader, ownership.Options{Observer: observer})

	res, err := scanner.Scan(context.Background(), contract, owner, ownership.DefaultWindow)
	require.NoError(t, err)

	assert.Equal(t, ownership.StrategyEnumerable, res.Strategy)
	assert.Equal(t, []int64{3, 5, 9}, ids(res))
	assert.Empty(t, reader.queries, "event scan must not run")
	require.Len(t, observer.results, 1)
	assert.Equal(t, ownership.StrategyEnumerable, observer.results[0].Strategy)
}

func TestScanEnumerableEmpty(t *testing.T) {
	reader := newFakeReader()

	res, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 100)
	require.NoError(t, err)

	assert.Equal(t, ownership.StrategyEnumerable, res.Strategy)
	assert.Empty(t, res.TokenIDs)
}

func TestScanEnumerablePartialFailureFallsBackEntirely(t *testing.T) {
	reader := newFakeReader()
	// indexes 0 and 1 succeed, index 2 fails
	reader.enumerable = []int64{100, 101, 102, 103}
	reader.failIndex = 2

	reader.latest = 1000
	reader.logs = []types.Log{nftLog(900, owner, 7), nftLog(950, owner, 8)}
	reader.owners[7] = owner
	reader.owners[8] = owner

	res, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 500)
	require.NoError(t, err)

	assert.Equal(t, ownership.StrategyEventScan, res.Strategy)
	// nothing from the enumerable attempt leaks into the result
	assert.Equal(t, []int64{7, 8}, ids(res))
}

func TestScanEventReconciliation(t *testing.T) {
	reader := newFakeReader()
	reader.balanceErr = errReverted

	reader.latest = 300_000
	reader.logs = []types.Log{
		nftLog(150_000, owner, 1),  // received and still owned
		nftLog(160_000, owner, 2),  // received, then sent away
		nftLog(170_000, owner, 3),  // burned, ownerOf reverts
		nftLog(180_000, owner, 1),  // duplicate transfer of id 1
		nftLog(190_000, other, 4),  // to someone else
		erc20Log(195_000, owner),   // ERC20 transfer, three topics
		nftLog(50_000, owner, 5),   // outside the window
		nftLog(299_999, owner, 10), // near the head
	}
	reader.owners[1] = owner
	reader.owners[2] = other
	reader.ownerErr[3] = errReverted
	reader.owners[4] = other
	reader.owners[5] = owner
	reader.owners[10] = owner

	res, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 200_000)
	require.NoError(t, err)

	assert.Equal(t, ownership.StrategyEventScan, res.Strategy)
	assert.Equal(t, []int64{1, 10}, ids(res))
}

func TestScanEventChunks(t *testing.T) {
	reader := newFakeReader()
	reader.balanceErr = errReverted
	reader.latest = 25_000

	_, err := ownership.NewScanner(reader, ownership.Options{ChunkSize: 10_000}).Scan(context.Background(), contract, owner, 30_000)
	require.NoError(t, err)

	require.Len(t, reader.queries, 3)
	bounds := make([][2]uint64, len(reader.queries))
	for i, q := range reader.queries {
		bounds[i] = [2]uint64{q.FromBlock.Uint64(), q.ToBlock.Uint64()}

		assert.Equal(t, []common.Address{contract}, q.Addresses)
		require.Len(t, q.Topics, 3)
		assert.Equal(t, []common.Hash{chain.TransferEventTopic}, q.Topics[0])
		assert.Nil(t, q.Topics[1])
		assert.Equal(t, []common.Hash{common.BytesToHash(owner.Bytes())}, q.Topics[2])
	}
	assert.Equal(t, [][2]uint64{{0, 9_999}, {10_000, 19_999}, {20_000, 25_000}}, bounds)
}

func TestScanEventSingleQuery(t *testing.T) {
	reader := newFakeReader()
	reader.balanceErr = errReverted
	reader.latest = 500_000

	_, err := ownership.NewScanner(reader, ownership.Options{SingleQuery: true}).Scan(context.Background(), contract, owner, 200_000)
	require.NoError(t, err)

	require.Len(t, reader.queries, 1)
	assert.Equal(t, uint64(300_000), reader.queries[0].FromBlock.Uint64())
	assert.Equal(t, uint64(500_000), reader.queries[0].ToBlock.Uint64())
}

func TestScanTransportFailure(t *testing.T) {
	reader := newFakeReader()
	reader.balanceErr = errReverted
	reader.latestErr = errDown

	_, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 100)
	require.ErrorIs(t, err, ownership.ErrScanFailure)

	reader.latestErr = nil
	reader.latest = 100
	reader.logsErr = errDown

	_, err = ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 100)
	require.ErrorIs(t, err, ownership.ErrScanFailure)
}

func TestScanNothingOwned(t *testing.T) {
	reader := newFakeReader()
	reader.balanceErr = errReverted
	reader.latest = 10

	res, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 200_000)
	require.NoError(t, err)

	assert.Equal(t, ownership.StrategyEventScan, res.Strategy)
	assert.Empty(t, res.TokenIDs)
	require.Len(t, reader.queries, 1)
	assert.Equal(t, uint64(0), reader.queries[0].FromBlock.Uint64())
}

func TestScanImplausibleBalanceFallsBack(t *testing.T) {
	reader := newFakeReader()
	reader.balance = new(big.Int).Lsh(big.NewInt(1), 200)
	reader.latest = 10

	res, err := ownership.NewScanner(reader, ownership.Options{}).Scan(context.Background(), contract, owner, 10)
	require.NoError(t, err)
	assert.Equal(t, ownership.StrategyEventScan, res.Strategy)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "enumerable", ownership.StrategyEnumerable.String())
	assert.Equal(t, "event_scan", ownership.StrategyEventScan.String())
	assert.Equal(t, "unknown", ownership.Strategy(0).String())
}
