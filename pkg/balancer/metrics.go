package balancer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the balancer's Prometheus surface: per-lane bucket occupancy
// and total pick outcomes, so an operator can see a canary bucket drain to
// zero before it ever shows up as user-facing errors.
type Metrics struct {
	BucketReadyBackends *prometheus.GaugeVec
	PicksTotal          *prometheus.CounterVec
}

// NewMetrics registers the balancer's metrics under namespace/subsystem,
// following the Namespace/Subsystem/Name convention the rest of this
// library's metrics use.
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		BucketReadyBackends: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "balancer_bucket_ready_backends",
				Help:      "Number of READY subchannels currently held in a lane bucket",
			},
			[]string{"lane"},
		),
		PicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "balancer_picks_total",
				Help:      "Total pick outcomes by requested lane and result",
			},
			[]string{"lane", "result"},
		),
	}
}
