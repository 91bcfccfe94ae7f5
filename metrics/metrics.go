// Package metrics registers the Prometheus counters and gauges each
// phase worker updates as documents move through the pipeline (spec.md
// external-interfaces ambient stack). Unlike the teacher's own
// stats package, which emits a StatsD-style named-value stream polled
// by a central Daemon, these are plain promauto-registered collectors
// scraped directly by a Prometheus server via an HTTP handler — the
// idiomatic client_golang shape, since no pack member retrieves a
// StatsD-backed metrics sink to ground a copy of the teacher's own
// approach against.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docs_extracted_total",
		Help: "Documents successfully extracted and persisted to the extract queue.",
	})
	DocsTransformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docs_transformed_total",
		Help: "Documents that passed through the transform pipeline and moved to the publish queue.",
	})
	DocsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docs_published_total",
		Help: "Documents successfully upserted or deleted against the index.",
	})
	DocsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docs_dropped_total",
		Help: "Documents dropped by a phase without reaching the next queue, by phase and reason.",
	}, []string{"phase", "reason"})

	PhaseQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "phase_queue_depth",
		Help: "Number of payloads currently buffered on a phase's input channel.",
	}, []string{"phase"})
)

// SetQueueDepth records phase's current channel backlog, called
// opportunistically by a worker's poll loop (a best-effort gauge, not a
// precise one: Go channels don't expose depth atomically with a dequeue).
func SetQueueDepth(phase string, depth int) {
	PhaseQueueDepth.WithLabelValues(phase).Set(float64(depth))
}

// Dropped increments the drop counter for phase/reason, e.g.
// ("transform", "pipeline_error") when a document fails both its
// configured pipeline and the bag-copy fallback.
func Dropped(phase, reason string) {
	DocsDropped.WithLabelValues(phase, reason).Inc()
}
