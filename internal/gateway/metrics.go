package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

const outcomeSuccess = "success"

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poe2arb_gateway_fetches_total",
				Help: "Total number of gateway fetches by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poe2arb_gateway_fetch_duration_seconds",
				Help:    "Gateway fetch duration in seconds by outcome",
				Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"outcome"},
		),
	}
}

// outcome returns the metric label for a fetch result.
func outcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return poeerrors.KindOf(err).String()
}

func (m *Metrics) observe(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := outcome(err)
	m.FetchesTotal.WithLabelValues(label).Inc()
	m.FetchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}
