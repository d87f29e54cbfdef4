// Package metrics exposes Prometheus instruments for frame extraction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_extractions_total",
		Help: "Total number of extraction runs, by outcome",
	}, []string{"outcome"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framegrab_extraction_duration_seconds",
		Help:    "Wall time of a complete extraction run",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framegrab_frames_extracted_total",
		Help: "Total number of frames written across all extractions",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_frame_failures_total",
		Help: "Total number of frames that failed, by stage",
	}, []string{"stage"})

	ActiveExtractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framegrab_active_extractions",
		Help: "Number of extractions currently running",
	})
)

// Outcome labels for ExtractionsTotal.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)
