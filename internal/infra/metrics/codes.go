package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(codesGauge) }

var codesGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "codes",
		Help: "Provisioned codes by derived status.",
	},
	[]string{"status"}, // 'total', 'used', 'unused'
)

func SetCodeStats(total, used, unused int) {
	codesGauge.WithLabelValues("total").Set(float64(total))
	codesGauge.WithLabelValues("used").Set(float64(used))
	codesGauge.WithLabelValues("unused").Set(float64(unused))
}
