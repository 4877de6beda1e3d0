package transfer_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/util/retry"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

var errNodeDown = errors.New("node down")

// dispatcherFunc adapts a function to the Dispatcher interface.
type dispatcherFunc func(ctx context.Context, req *transfer.Request) (common.Hash, error)

func (f dispatcherFunc) Send(ctx context.Context, req *transfer.Request) (common.Hash, error) {
	return f(ctx, req)
}

type countingObserver struct {
	mu        sync.Mutex
	failed    map[int]int
	completed map[int]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{failed: map[int]int{}, completed: map[int]int{}}
}

func (o *countingObserver) AttemptFailed(req *transfer.Request, _ int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[req.Index]++
}

func (o *countingObserver) Completed(outcome transfer.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed[outcome.Request.Index]++
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func testAccount(t *testing.T) *account.Account {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return account.New(key)
}

func nativeRequests(t *testing.T, n int) []*transfer.Request {
	t.Helper()

	from := testAccount(t)
	requests := make([]*transfer.Request, n)
	for i := range requests {
		to := common.BigToAddress(big.NewInt(int64(i + 1)))
		requests[i] = transfer.NewRequest(transfer.KindNativeOneToMany, from, to, transfer.Native(), big.NewInt(1000))
		requests[i].Index = i
	}

	return requests
}

func TestExecuteBoundedRetriesAndConcurrency(t *testing.T) {
	const (
		count       = 10
		concurrency = 3
		maxRetries  = 2
	)

	var (
		inFlight    atomic.Int32
		maxInFlight atomic.Int32
		mu          sync.Mutex
		attempts    = map[int]int{}
	)

	dispatcher := dispatcherFunc(func(_ context.Context, req *transfer.Request) (common.Hash, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			seen := maxInFlight.Load()
			if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
				break
			}
		}

		mu.Lock()
		attempts[req.Index]++
		mu.Unlock()

		time.Sleep(time.Millisecond)
		return common.Hash{}, errNodeDown
	})

	observer := newCountingObserver()
	executor := &transfer.Executor{
		Dispatcher:  dispatcher,
		Concurrency: concurrency,
		Retry:       retry.Policy{MaxRetries: maxRetries, BaseDelay: time.Second, Sleep: noSleep},
		Observer:    observer,
	}

	outcomes := executor.Execute(context.Background(), nativeRequests(t, count))
	require.Len(t, outcomes, count)

	for i, o := range outcomes {
		assert.Equal(t, i, o.Request.Index)
		assert.False(t, o.Success)
		assert.Equal(t, maxRetries+1, o.Attempts)
		assert.Equal(t, maxRetries+1, attempts[i])
		assert.Contains(t, o.Reason, "node down")
		require.ErrorIs(t, o.Err, errNodeDown)
		assert.Equal(t, "failure", o.Status())

		assert.Equal(t, maxRetries+1, observer.failed[i])
		assert.Equal(t, 1, observer.completed[i])
	}

	assert.LessOrEqual(t, maxInFlight.Load(), int32(concurrency))
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	txHash := common.HexToHash("0xabc")

	var calls atomic.Int32
	dispatcher := dispatcherFunc(func(context.Context, *transfer.Request) (common.Hash, error) {
		if calls.Add(1) == 1 {
			return common.Hash{}, errNodeDown
		}
		return txHash, nil
	})

	executor := &transfer.Executor{
		Dispatcher:  dispatcher,
		Concurrency: 1,
		Retry:       retry.Policy{MaxRetries: 2, Sleep: noSleep},
	}

	outcomes := executor.Execute(context.Background(), nativeRequests(t, 1))
	require.Len(t, outcomes, 1)

	assert.True(t, outcomes[0].Success)
	assert.Equal(t, txHash, outcomes[0].TxHash)
	assert.Equal(t, 2, outcomes[0].Attempts)
	assert.Empty(t, outcomes[0].Reason)
	assert.Equal(t, "success", outcomes[0].Status())
}

func TestExecuteStartsInSubmissionOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
	)

	dispatcher := dispatcherFunc(func(_ context.Context, req *transfer.Request) (common.Hash, error) {
		mu.Lock()
		order = append(order, req.Index)
		mu.Unlock()
		return common.BigToHash(big.NewInt(int64(req.Index + 1))), nil
	})

	executor := &transfer.Executor{Dispatcher: dispatcher, Concurrency: 1}
	outcomes := executor.Execute(context.Background(), nativeRequests(t, 8))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	for _, o := range outcomes {
		assert.True(t, o.Success)
		assert.Equal(t, 1, o.Attempts)
	}
}

func TestExecuteOneFailureDoesNotStopOthers(t *testing.T) {
	dispatcher := dispatcherFunc(func(_ context.Context, req *transfer.Request) (common.Hash, error) {
		if req.Index == 1 {
			return common.Hash{}, errNodeDown
		}
		return common.HexToHash(fmt.Sprintf("0x%x", req.Index+1)), nil
	})

	executor := &transfer.Executor{Dispatcher: dispatcher, Concurrency: 2}
	outcomes := executor.Execute(context.Background(), nativeRequests(t, 3))

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.True(t, outcomes[2].Success)
}

func TestExecuteCanceledBeforeStart(t *testing.T) {
	var calls atomic.Int32
	dispatcher := dispatcherFunc(func(context.Context, *transfer.Request) (common.Hash, error) {
		calls.Add(1)
		return common.Hash{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := &transfer.Executor{Dispatcher: dispatcher, Concurrency: 2}
	outcomes := executor.Execute(ctx, nativeRequests(t, 4))

	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.False(t, o.Success)
		assert.Equal(t, 0, o.Attempts)
		require.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}

func TestExecuteCanceledWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	dispatcher := dispatcherFunc(func(ctx context.Context, req *transfer.Request) (common.Hash, error) {
		if req.Index == 0 {
			close(started)
		}
		<-ctx.Done()
		return common.Hash{}, ctx.Err()
	})

	executor := &transfer.Executor{
		Dispatcher:  dispatcher,
		Concurrency: 1,
		Retry:       retry.Policy{MaxRetries: 3, Sleep: noSleep},
	}

	stream := executor.Stream(ctx, nativeRequests(t, 5))
	<-started
	cancel()

	count := 0
	for o := range stream {
		count++
		assert.False(t, o.Success)
		require.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Equal(t, 5, count)
}

func TestRequestString(t *testing.T) {
	req := transfer.NewRequest(transfer.KindTokenSplit, testAccount(t), common.HexToAddress("0x01"),
		transfer.FungibleToken(common.HexToAddress("0xc0"), 6), big.NewInt(1_500_000))

	assert.Equal(t, "1.5", req.AmountString())
	assert.NotEqual(t, req.ID.String(), transfer.NewRequest(req.Kind, req.From, req.To, req.Asset, req.Amount).ID.String())

	nft := transfer.NewRequest(transfer.KindNFTSweep, req.From, req.To,
		transfer.NonFungibleToken(common.HexToAddress("0xc1"), big.NewInt(42)), nil)
	assert.Equal(t, "1", nft.AmountString())
	assert.Contains(t, nft.String(), "token 42")
	assert.Equal(t, "erc721", nft.Asset.Type.String())
}
