// Package metrics holds the prometheus collectors of the node and serves
// them over HTTP.
package metrics

import (
	"net/http"
	"sync"

	"github.com/cnchain/cnd/util/panics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksProcessed counts AddBlock calls by outcome.
	BlocksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnd",
		Name:      "blocks_processed_total",
		Help:      "Number of blocks offered to the chain selector, by outcome",
	}, []string{"outcome"})

	// ChainSwitches counts main chain reorganizations.
	ChainSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cnd",
		Name:      "chain_switches_total",
		Help:      "Number of times an alternative chain became the main chain",
	})

	// ReorganizationDepth tracks how many main chain blocks a switch undid.
	ReorganizationDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cnd",
		Name:      "reorganization_depth_blocks",
		Help:      "Number of main chain blocks replaced by a chain switch",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	// Segments is the number of segments in the chain tree.
	Segments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cnd",
		Name:      "segments",
		Help:      "Number of segments in the chain tree",
	})

	// TopBlockIndex is the index of the main chain top.
	TopBlockIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cnd",
		Name:      "top_block_index",
		Help:      "Index of the main chain top block",
	})

	// PoolTransactions is the number of transactions in the pool.
	PoolTransactions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cnd",
		Name:      "pool_transactions",
		Help:      "Number of transactions in the pool",
	})

	// PoolDeletions counts transactions leaving the pool, by reason.
	PoolDeletions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnd",
		Name:      "pool_deletions_total",
		Help:      "Number of transactions removed from the pool, by reason",
	}, []string{"reason"})
)

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
	serveOnce    sync.Once
)

// Registry returns the registry every collector of the node is registered
// with.
func Registry() *prometheus.Registry {
	registerOnce.Do(func() {
		registry.MustRegister(
			BlocksProcessed,
			ChainSwitches,
			ReorganizationDepth,
			Segments,
			TopBlockIndex,
			PoolTransactions,
			PoolDeletions,
			prometheus.NewGoCollector(),
		)
	})
	return registry
}

// Serve exposes the collectors on listen under /metrics. Only the first
// call starts a server.
func Serve(listen string) {
	serveOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{}))

		spawn := panics.GoroutineWrapperFunc(log)
		spawn("metrics.Serve", func() {
			log.Infof("Prometheus exporter listening on %s/metrics", listen)
			err := http.ListenAndServe(listen, mux)
			if err != nil {
				log.Errorf("Prometheus exporter stopped: %s", err)
			}
		})
	})
}
