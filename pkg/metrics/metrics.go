// Copyright 2025 Certen Protocol
//
// Package metrics exposes the ABCI handler's per-block counters on a
// dedicated prometheus.Registry: one gauge/counter per metric,
// registered eagerly, served over promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every counter/gauge the ABCI Handler and the IAVL node
// DB update during block execution.
type Collector struct {
	registry *prometheus.Registry

	blockHeight    prometheus.Gauge
	blockGasUsed   prometheus.Gauge
	txsDelivered   prometheus.Counter
	txsRejected    prometheus.Counter
	gasConsumedSum prometheus.Counter
	iavlCacheHits  prometheus.Counter
	iavlCacheMiss  prometheus.Counter
}

// NewCollector builds a Collector on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chaind_block_height",
			Help: "Height of the last committed block",
		}),
		blockGasUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chaind_block_gas_used",
			Help: "Total gas consumed by the last finalized block",
		}),
		txsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaind_txs_delivered_total",
			Help: "Total number of transactions successfully delivered",
		}),
		txsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaind_txs_rejected_total",
			Help: "Total number of transactions rejected in CheckTx or DeliverTx",
		}),
		gasConsumedSum: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaind_gas_consumed_total",
			Help: "Cumulative gas consumed across all delivered transactions",
		}),
		iavlCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaind_iavl_cache_hits_total",
			Help: "Total IAVL node-cache hits",
		}),
		iavlCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaind_iavl_cache_misses_total",
			Help: "Total IAVL node-cache misses",
		}),
	}

	reg.MustRegister(
		c.blockHeight,
		c.blockGasUsed,
		c.txsDelivered,
		c.txsRejected,
		c.gasConsumedSum,
		c.iavlCacheHits,
		c.iavlCacheMiss,
	)
	return c
}

// ObserveCommit records the height/gas totals for a just-committed block.
func (c *Collector) ObserveCommit(height int64, gasUsed uint64) {
	c.blockHeight.Set(float64(height))
	c.blockGasUsed.Set(float64(gasUsed))
}

// ObserveDeliverTx records one DeliverTx outcome.
func (c *Collector) ObserveDeliverTx(ok bool, gasUsed uint64) {
	if ok {
		c.txsDelivered.Inc()
		c.gasConsumedSum.Add(float64(gasUsed))
		return
	}
	c.txsRejected.Inc()
}

// ObserveCacheHit/ObserveCacheMiss record an IAVL node-cache lookup
// outcome, fed by pkg/kvdb's NodeDB decode cache.
func (c *Collector) ObserveCacheHit()  { c.iavlCacheHits.Inc() }
func (c *Collector) ObserveCacheMiss() { c.iavlCacheMiss.Inc() }

// Handler returns an http.Handler serving this collector's registry in
// the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
