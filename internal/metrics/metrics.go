// Package metrics exposes prometheus collectors for transfers and ownership scans.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github/chapool/batch-sender/internal/wallet/ownership"
	"github/chapool/batch-sender/internal/wallet/transfer"
)

const namespace = "batch_sender"

// Metrics implements transfer.Observer and ownership.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	attemptFailures *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	attempts        *prometheus.HistogramVec
	duration        *prometheus.HistogramVec
	scans           *prometheus.CounterVec
	scannedTokens   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, including Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		attemptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_attempt_failures_total",
			Help:      "Failed transfer attempts, including attempts that were retried.",
		}, []string{"asset"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_outcomes_total",
			Help:      "Final transfer outcomes by asset and status.",
		}, []string{"asset", "status"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_attempts",
			Help:      "Attempts needed per transfer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}, []string{"asset"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Time from first attempt to final outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), //nolint:mnd
		}, []string{"asset", "status"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ownership_scans_total",
			Help:      "Completed ownership scans by the strategy that produced the result.",
		}, []string{"strategy"}),
		scannedTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ownership_scanned_tokens_total",
			Help:      "Token ids found by ownership scans.",
		}, []string{"strategy"}),
	}

	m.Registry.MustRegister(
		m.attemptFailures,
		m.outcomes,
		m.attempts,
		m.duration,
		m.scans,
		m.scannedTokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) AttemptFailed(req *transfer.Request, _ int, _ error) {
	m.attemptFailures.WithLabelValues(req.Asset.Type.String()).Inc()
}

func (m *Metrics) Completed(o transfer.Outcome) {
	asset := o.Request.Asset.Type.String()

	m.outcomes.WithLabelValues(asset, o.Status()).Inc()
	m.attempts.WithLabelValues(asset).Observe(float64(o.Attempts))
	if o.Attempts > 0 {
		m.duration.WithLabelValues(asset, o.Status()).Observe(o.Duration.Seconds())
	}
}

func (m *Metrics) ScanCompleted(_, _ common.Address, res ownership.Result) {
	m.scans.WithLabelValues(res.Strategy.String()).Inc()
	m.scannedTokens.WithLabelValues(res.Strategy.String()).Add(float64(len(res.TokenIDs)))
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down metrics server")
		}
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}

	return nil
}

// Handler returns the /metrics handler of the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
