package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(redemptionsTotal, redemptionLatencyMs, provisionedTotal) }

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Authenticate calls by internal outcome.",
		},
		[]string{"outcome"}, // success|not_found|already_used|empty|rate_limited|error
	)

	redemptionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redemption_latency_ms",
			Help:    "Authenticate latency distribution in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	provisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codes_provisioned_total",
			Help: "Provisioning results per row (imported/skipped/failed).",
		},
		[]string{"result"},
	)
)

// IncRedemption records one authenticate outcome; reason is the internal reason text.
func IncRedemption(reason string) {
	redemptionsTotal.WithLabelValues(strings.ReplaceAll(norm(reason), " ", "_")).Inc()
}

func ObserveRedemptionLatency(ms float64) {
	redemptionLatencyMs.Observe(ms)
}

func AddProvisioned(imported, skipped, failed int) {
	provisionedTotal.WithLabelValues("imported").Add(float64(imported))
	provisionedTotal.WithLabelValues("skipped").Add(float64(skipped))
	provisionedTotal.WithLabelValues("failed").Add(float64(failed))
}
