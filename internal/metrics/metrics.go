package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutMetrics struct {
	Outcomes   *prometheus.CounterVec
	DurationMS prometheus.Histogram
}

func NewCheckoutMetrics() *CheckoutMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Total number of checkout attempts by terminal outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "duration_ms",
		Help:      "Checkout pipeline duration in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	prometheus.MustRegister(outcomes, duration)
	return &CheckoutMetrics{Outcomes: outcomes, DurationMS: duration}
}

func (m *CheckoutMetrics) Observe(outcome string, elapsed time.Duration) {
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.DurationMS.Observe(float64(elapsed.Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
