// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package fusion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for fusion metrics.
const (
	StatusSuccess         = "success"
	StatusTemplateMissing = "template_not_found"
	StatusNotOwned        = "not_owned"
	StatusInsufficient    = "insufficient_count"
	StatusSameSource      = "same_source"
	StatusGenerator       = "generator_failed"
	StatusError           = "error"
)

// Fusions is the counter for fusion attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var Fusions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fuseforge_fusions_total",
		Help: "Total number of fusion attempts",
	},
	[]string{"status"},
)

// FusionDuration is the histogram for end-to-end fusion duration,
// including content and sprite generation.
var FusionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "fuseforge_fusion_duration_seconds",
		Help:    "Fusion duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// SpriteFallbacks counts fusions that completed without generated sprites.
var SpriteFallbacks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "fuseforge_fusion_sprite_fallbacks_total",
		Help: "Fusions that fell back to stock sprites",
	},
)

// RegisterMetrics registers fusion package metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Fusions)
	reg.MustRegister(FusionDuration)
	reg.MustRegister(SpriteFallbacks)
}

func recordFusion(status string, duration time.Duration) {
	Fusions.WithLabelValues(status).Inc()
	FusionDuration.Observe(duration.Seconds())
}
