package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvocationsTotal counts the authenticated invocations handled by the
	// gate, by outcome.
	//
	// Example usage:
	// metrics.InvocationsTotal.WithLabelValues("Identity", "WhoAmI", "ok").Inc()
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_invocations_total",
			Help: "Number of authenticated invocations handled by the gate.",
		},
		[]string{"owner", "method", "result"},
	)

	// VerifyDuration is a histogram that tracks the latency of token
	// verification per verifier mode.
	VerifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "authgate_verify_duration",
			Help: "A histogram of token verification latency.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
				2.5, 5, 10},
		},
		[]string{"mode", "status"},
	)

	// JWKSFetchTotal counts the number of JWKS fetches made by verifiers.
	JWKSFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_jwks_fetch_total",
			Help: "Number of JWKS fetches made by verifiers.",
		},
		[]string{"status"},
	)

	// ClaimsCacheTotal counts claims cache lookups.
	//
	// Example usage:
	// metrics.ClaimsCacheTotal.WithLabelValues("hit").Inc()
	ClaimsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_claims_cache_total",
			Help: "Number of claims cache lookups.",
		},
		[]string{"result"},
	)

	// MemorystoreRequestDuration is a histogram that tracks the latency of
	// requests from the gate to Memorystore.
	MemorystoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "authgate_memorystore_request_duration",
			Help: "A histogram of request latency to Memorystore.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
				2, 4},
		},
		[]string{"op", "status"},
	)
)
