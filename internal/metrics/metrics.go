// Package metrics exposes Prometheus collectors for rebuilds and queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
)

const namespace = "beyondsight"

var (
	// rebuildsTotal counts finished rebuilds.
	// Labels: outcome (completed, failed)
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "rebuilds_total",
		Help:      "Total project rebuilds by outcome",
	}, []string{"outcome"})

	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "rebuild_duration_seconds",
		Help:      "Duration of project rebuilds in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// graphSize reports the size of the published graph.
	// Labels: kind (nodes, edges)
	graphSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "size",
		Help:      "Number of nodes and edges in the published graph",
	}, []string{"kind"})

	// queryDuration measures impact query latency.
	// Labels: query (field, method, class, writers, readers, upstream, downstream), code
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "impact",
		Name:      "query_duration_seconds",
		Help:      "Impact query latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"query", "code"})

	// rescanRejections counts rescans refused because one was running.
	rescanRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "rescan_conflicts_total",
		Help:      "Rescan requests rejected while a rebuild was running",
	})
)

// RecordRebuild records a finished rebuild.
func RecordRebuild(d time.Duration, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	rebuildsTotal.WithLabelValues(outcome).Inc()
	rebuildDuration.Observe(d.Seconds())
}

// SetGraphSize publishes the size of the current graph.
func SetGraphSize(nodes, edges int) {
	graphSize.WithLabelValues("nodes").Set(float64(nodes))
	graphSize.WithLabelValues("edges").Set(float64(edges))
}

// RecordRescanConflict counts a rejected rescan.
func RecordRescanConflict() {
	rescanRejections.Inc()
}

// ObserveQuery records the latency of an impact query since start.
func ObserveQuery(query string, start time.Time, err error) {
	code := "OK"
	if err != nil {
		code = string(bserrors.CodeOf(err))
	}
	queryDuration.WithLabelValues(query, code).Observe(time.Since(start).Seconds())
}
