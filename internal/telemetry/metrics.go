// Package telemetry exposes pipeline counters over Prometheus.
package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline instruments so components take a single
// dependency instead of package globals. Tests build one against a fresh
// registry.
type Metrics struct {
	MessagesReceived   prometheus.Counter
	RawSaved           prometheus.Counter
	EmptyPayloads      prometheus.Counter
	DeadLettered       prometheus.Counter
	TradesPersisted    prometheus.Counter
	Exceptions         *prometheus.CounterVec
	Duplicates         prometheus.Counter
	BlankReferences    prometheus.Counter
	ProcessingDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_messages_received_total",
			Help: "Inbound messages fetched from the input topic.",
		}),
		RawSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_raw_messages_saved_total",
			Help: "Raw payloads durably written before acknowledgment.",
		}),
		EmptyPayloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_empty_payloads_total",
			Help: "Messages acknowledged without storing because the payload was blank.",
		}),
		DeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_dead_lettered_total",
			Help: "Messages routed to the dead-letter topic.",
		}),
		TradesPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_trades_persisted_total",
			Help: "Validated trades persisted and published downstream.",
		}),
		Exceptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trademanager_exceptions_total",
			Help: "Exception records written, by kind.",
		}, []string{"kind"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_duplicates_skipped_total",
			Help: "Messages dropped because the client reference number was already seen.",
		}),
		BlankReferences: factory.NewCounter(prometheus.CounterOpts{
			Name: "trademanager_blank_references_skipped_total",
			Help: "Parsed trades skipped because they carry no client reference number.",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trademanager_processing_duration_seconds",
			Help:    "Per-message pipeline duration from parse to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Serve exposes /metrics for the given registry. It blocks, so callers run
// it in a goroutine.
func Serve(addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("Metrics listener started", "addr", addr)
	return server.ListenAndServe()
}
