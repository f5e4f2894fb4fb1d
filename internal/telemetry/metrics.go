/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SelectionsTotal counts selections by collection.
	SelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaspinner_selections_total",
		Help: "Total selections served, by collection.",
	}, []string{"collection"})

	// RelaxationsTotal counts selections that needed constraint relaxation.
	RelaxationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaspinner_relaxations_total",
		Help: "Selections where backoff constraints had to be relaxed, by stage.",
	}, []string{"stage"})

	// APIRequestsTotal counts HTTP requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaspinner_api_requests_total",
		Help: "Total HTTP requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediaspinner_api_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediaspinner_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSelection updates selection metrics for one served selection.
func RecordSelection(collection, relaxationStage string) {
	SelectionsTotal.WithLabelValues(collection).Inc()
	if relaxationStage != "none" {
		RelaxationsTotal.WithLabelValues(relaxationStage).Inc()
	}
}
