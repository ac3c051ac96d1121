package ldf

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the decode pipeline — global only, no
// unbounded label cardinality (one LDF decoder runs per process).
var (
	goodChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ldf_good_chunks_total",
		Help: "Total spill chunks reassembled without a gap or reorder.",
	})
	missingChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ldf_missing_chunks_total",
		Help: "Total spill chunks lost to gaps, reorders, or bad tags.",
	})
	spillsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ldf_spills_emitted_total",
		Help: "Total spills handed from the reassembler to the demultiplexer.",
	})
	corruptEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ldf_corrupt_events_total",
		Help: "Total channel events rejected by the bit-field decoder.",
	})
	hitsPerBatch = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ldf_hits_per_batch",
		Help:    "Distribution of Hit counts in each globally-sorted output batch.",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})
)

func init() {
	prometheus.MustRegister(goodChunksTotal, missingChunksTotal, spillsEmittedTotal,
		corruptEventsTotal, hitsPerBatch)
}
