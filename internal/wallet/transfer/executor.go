package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/util/retry"
	"golang.org/x/sync/semaphore"
)

// Executor runs requests through a Dispatcher with at most Concurrency requests in
// flight. Requests start in submission order; a failing request never stops the others.
type Executor struct {
	Dispatcher  Dispatcher
	Concurrency int
	Retry       retry.Policy
	Observer    Observer // optional
}

// Stream starts executing requests and returns a channel that yields one outcome per
// request in completion order. The channel is closed after the last outcome.
func (e *Executor) Stream(ctx context.Context, requests []*Request) <-chan Outcome {
	out := make(chan Outcome, len(requests))

	concurrency := e.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	go func() {
		defer close(out)

		var wg sync.WaitGroup
		for i, req := range requests {
			// Acquire blocks in submission order, so queued requests dispatch FIFO.
			if err := sem.Acquire(ctx, 1); err != nil {
				for _, rest := range requests[i:] {
					e.emit(ctx, out, Failed(rest, ctx.Err(), 0, 0))
				}
				break
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				e.emit(ctx, out, e.run(ctx, req))
			}()
		}

		wg.Wait()
	}()

	return out
}

// Execute runs all requests and returns their outcomes ordered by request index.
func (e *Executor) Execute(ctx context.Context, requests []*Request) []Outcome {
	outcomes := make([]Outcome, 0, len(requests))
	for o := range e.Stream(ctx, requests) {
		outcomes = append(outcomes, o)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Request.Index < outcomes[j].Request.Index
	})

	return outcomes
}

func (e *Executor) run(ctx context.Context, req *Request) Outcome {
	logger := util.LogFromContext(ctx).With().
		Str("request_id", req.ID.String()).
		Int("index", req.Index).
		Str("kind", string(req.Kind)).
		Str("from", req.From.String()).
		Str("to", req.To.Hex()).
		Logger()

	start := time.Now()

	var txHash common.Hash
	attempts, err := e.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		hash, err := e.Dispatcher.Send(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Transfer attempt failed")
			if e.Observer != nil {
				e.Observer.AttemptFailed(req, attempt, err)
			}
			return err
		}

		txHash = hash
		return nil
	})

	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("Transfer failed")
		return Failed(req, err, attempts, time.Since(start))
	}

	logger.Info().Str("tx_hash", txHash.Hex()).Int("attempts", attempts).Msg("Transfer confirmed")

	return Succeeded(req, txHash, attempts, time.Since(start))
}

func (e *Executor) emit(ctx context.Context, out chan<- Outcome, o Outcome) {
	if !o.Success && o.Attempts == 0 {
		util.LogFromContext(ctx).Warn().
			Str("request_id", o.Request.ID.String()).
			Int("index", o.Request.Index).
			Str("reason", o.Reason).
			Msg("Transfer not started")
	}

	if e.Observer != nil {
		e.Observer.Completed(o)
	}

	out <- o
}
