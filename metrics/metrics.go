// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkstash_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkstash_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// FetchDuration observes page fetch latency by outcome.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkstash_fetch_duration_seconds",
			Help:    "Duration of page fetches during metadata extraction.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	// AIRequestsTotal counts model calls by kind (tags, summary) and outcome.
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkstash_ai_requests_total",
			Help: "Total number of generative model calls.",
		},
		[]string{"kind", "outcome"},
	)

	// LinksSavedTotal counts completed saves by enrichment outcome
	// (enriched, degraded).
	LinksSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkstash_links_saved_total",
			Help: "Total number of links persisted.",
		},
		[]string{"enrichment"},
	)
)
