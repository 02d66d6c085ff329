package metrics

import "github.com/prometheus/client_golang/prometheus"

// PollerMetrics bundles the exporter's own health metrics, exposed on the
// same registry as the charger readings.
type PollerMetrics struct {
	Up                  prometheus.Gauge
	Cycles              *prometheus.CounterVec
	ConsecutiveFailures prometheus.Gauge
}

const (
	CycleResultSuccess    = "success"
	CycleResultFetchError = "fetch_error"
	CycleResultParseError = "parse_error"
)

// NewPollerMetrics constructs and registers the poller metrics.
func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		Up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amtron_up",
			Help: "Whether the last poll of the charger succeeded",
		}),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amtron_poll_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amtron_consecutive_poll_failures",
			Help: "Number of poll cycles failed in a row",
		}),
	}
	reg.MustRegister(
		m.Up,
		m.Cycles,
		m.ConsecutiveFailures,
	)
	return m
}
