package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/metrics"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/util/retry"
	"github/chapool/batch-sender/internal/wallet/amount"
	"github/chapool/batch-sender/internal/wallet/chain"
	"github/chapool/batch-sender/internal/wallet/ownership"
	"github/chapool/batch-sender/internal/wallet/plan"
	"github/chapool/batch-sender/internal/wallet/result"
	"github/chapool/batch-sender/internal/wallet/signer"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

// Runner is a central struct keeping all the dependencies of one batch run.
// Components are initialized in order by Init; the result sink is opened on the first Run.
type Runner struct {
	Config  config.Sender
	RunID   string
	Network *chain.Network
	Chain   *chain.Client
	Signer  signer.Service
	Metrics *metrics.Metrics
	Sink    result.Sink

	// KeysPassword is asked for the password of an encrypted key file.
	KeysPassword func() (string, error)

	networks chain.Service
}

func New(cfg config.Sender) *Runner {
	return &Runner{
		Config: cfg,
		RunID:  uuid.NewString(),
	}
}

// Init initializes metrics and connects to the configured network.
func (r *Runner) Init(ctx context.Context) error {
	r.InitMetrics(ctx)

	return r.InitNetwork(ctx)
}

// InitMetrics creates the collectors and, if configured, serves them until ctx is done.
func (r *Runner) InitMetrics(ctx context.Context) {
	r.Metrics = metrics.New()

	if addr := r.Config.Metrics.ListenAddress; addr != "" {
		go func() {
			if err := r.Metrics.Serve(ctx, addr); err != nil {
				log.Error().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}
}

// Networks loads the network config file once.
//
//nolint:ireturn // Returning interface is intentional
func (r *Runner) Networks() (chain.Service, error) {
	if r.networks != nil {
		return r.networks, nil
	}

	svc, err := chain.NewServiceFromFile(r.Config.Files.Networks)
	if err != nil {
		return nil, &config.InputError{File: r.Config.Files.Networks, Reason: err.Error()}
	}
	r.networks = svc

	return svc, nil
}

// InitNetwork resolves the selected network, dials its RPC URLs and checks the chain id.
func (r *Runner) InitNetwork(ctx context.Context) error {
	if r.Config.NetworkKey == "" {
		return errors.Wrap(config.ErrConfig, "no network selected")
	}

	networks, err := r.Networks()
	if err != nil {
		return err
	}

	network, err := networks.GetNetwork(r.Config.NetworkKey)
	if err != nil {
		return &config.InputError{File: r.Config.Files.Networks, Reason: err.Error()}
	}

	client, err := chain.NewClient(chain.ClientConfig{
		URLs:    networks.ParseRPCURLs(network.RPC),
		Timeout: r.Config.Chain.RPCTimeout,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to connect to network %s", network.Key)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return errors.Wrapf(err, "failed to get chain id of network %s", network.Key)
	}

	if network.ChainID != 0 && chainID.Int64() != network.ChainID {
		client.Close()
		return &config.InputError{
			File:   r.Config.Files.Networks,
			Reason: errors.Errorf("network %s expects chain id %d, node reports %s", network.Key, network.ChainID, chainID).Error(),
		}
	}

	r.Network = network
	r.Chain = client
	r.Signer = signer.NewService(chainID)

	log.Info().
		Str("network", network.Key).
		Str("name", network.Name).
		Str("chain_id", chainID.String()).
		Msg("Connected to network")

	return nil
}

// InitSink opens the CSV results file and, if configured, the SQLite store.
func (r *Runner) InitSink(ctx context.Context) error {
	csvSink, err := result.OpenCSV(r.Config.Results.CSVPath)
	if err != nil {
		return err
	}

	sinks := result.MultiSink{csvSink}

	if dsn := r.Config.Results.SQLitePath; dsn != "" {
		sqliteSink, err := result.OpenSQLite(ctx, dsn, r.RunID)
		if err != nil {
			_ = csvSink.Close()
			return err
		}
		sinks = append(sinks, sqliteSink)
	}

	r.Sink = sinks

	return nil
}

// Planner wires the chain client, a per-run decimals cache and the ownership scanner.
func (r *Runner) Planner() *plan.Planner {
	opts := ownership.Options{
		ChunkSize:   r.Config.Scan.ChunkSize,
		SingleQuery: r.Config.Scan.ChunkSize == 0,
	}
	if r.Metrics != nil {
		opts.Observer = r.Metrics
	}

	scanner := ownership.NewScanner(r.Chain, opts)

	return plan.NewPlanner(r.Chain, amount.NewDecimalsCache(r.Chain), scanner)
}

// Executor returns an executor dispatching to the connected chain.
func (r *Runner) Executor() *transfer.Executor {
	return &transfer.Executor{
		Dispatcher:  transfer.NewChainDispatcher(r.Chain, r.Signer, r.Config.Executor.ConfirmTimeout),
		Concurrency: r.Config.Executor.Concurrency,
		Retry: retry.Policy{
			MaxRetries: r.Config.Executor.MaxRetries,
			BaseDelay:  r.Config.Executor.RetryBaseDelay,
			MaxDelay:   r.Config.Executor.RetryMaxDelay,
		},
		Observer: r.observer(),
	}
}

//nolint:ireturn // Returning interface is intentional
func (r *Runner) observer() transfer.Observer {
	if r.Metrics == nil {
		return nil
	}

	return r.Metrics
}

// Summary counts the outcomes of a run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []transfer.Outcome
	Duration  time.Duration
}

func (s *Summary) add(o transfer.Outcome, skipped bool) {
	switch {
	case o.Success:
		s.Succeeded++
	case skipped:
		s.Skipped++
		s.Failures = append(s.Failures, o)
	default:
		s.Failed++
		s.Failures = append(s.Failures, o)
	}
}

// Total is the number of recorded outcomes.
func (s *Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Run records the skipped items of pl, executes its requests and records every outcome
// as it completes. Recording failures are logged and the first one is returned.
func (r *Runner) Run(ctx context.Context, pl *plan.Plan) (Summary, error) {
	if r.Sink == nil {
		if err := r.InitSink(ctx); err != nil {
			return Summary{}, err
		}
	}

	start := time.Now()
	summary := Summary{}
	logger := util.LogFromContext(ctx)

	// outcomes are recorded even after ctx is canceled
	sinkCtx := context.WithoutCancel(ctx)

	var sinkErr error
	record := func(o transfer.Outcome) {
		if err := r.Sink.Append(sinkCtx, o); err != nil {
			logger.Error().Err(err).Str("request_id", o.Request.ID.String()).Msg("Failed to record outcome")
			if sinkErr == nil {
				sinkErr = err
			}
		}
	}

	for _, o := range pl.Skipped {
		if r.Metrics != nil {
			r.Metrics.Completed(o)
		}
		record(o)
		summary.add(o, true)
	}

	logger.Info().
		Int("requests", len(pl.Requests)).
		Int("skipped", len(pl.Skipped)).
		Int("concurrency", r.Config.Executor.Concurrency).
		Msg("Starting transfers")

	for o := range r.Executor().Stream(ctx, pl.Requests) {
		record(o)
		summary.add(o, false)
	}

	summary.Duration = time.Since(start)

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Run finished")

	return summary, sinkErr
}

// Shutdown closes the result sink and the chain client.
func (r *Runner) Shutdown(_ context.Context) []error {
	var errs []error

	if r.Sink != nil {
		if err := r.Sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.Chain != nil {
		r.Chain.Close()
	}

	return errs
}
