// Package metrics exposes Prometheus collectors for the SQP driver's
// outcomes, grounded on the teacher's cmd/server/main.go promhttp wiring
// (SPEC_FULL §EXPANSION "ambient stack").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/sqp"
)

// Collectors bundles every metric the solve path records. Register it
// once against a prometheus.Registerer at startup.
type Collectors struct {
	SolveStatus       *prometheus.CounterVec
	SolveDuration     prometheus.Histogram
	OverallIterations prometheus.Histogram
	TrustBoxSize      prometheus.Gauge
	MeritValue        prometheus.Gauge
}

// NewCollectors builds a fresh set of collectors with the given metric
// name prefix (e.g. "sqpforge").
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		SolveStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_status_total",
			Help:      "Count of SQP solves by terminal status.",
		}, []string{"status"}),
		SolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock duration of an SQP solve.",
			Buckets:   prometheus.DefBuckets,
		}),
		OverallIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_overall_iterations",
			Help:      "Number of accepted trust-region steps per solve.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		TrustBoxSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trust_box_size",
			Help:      "Largest component of the trust region box size after the most recent accepted step.",
		}),
		MeritValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merit_value",
			Help:      "Best exact merit value after the most recent accepted step.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration (matching prometheus.MustRegister's contract).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.SolveStatus, c.SolveDuration, c.OverallIterations, c.TrustBoxSize, c.MeritValue)
}

// RecordStatus records a completed solve's terminal status and overall
// iteration count.
func (c *Collectors) RecordStatus(status sqp.Status, overallIterations int) {
	c.SolveStatus.WithLabelValues(status.String()).Inc()
	c.OverallIterations.Observe(float64(overallIterations))
}

// ObserveDuration records a completed solve's wall-clock duration.
func (c *Collectors) ObserveDuration(seconds float64) {
	c.SolveDuration.Observe(seconds)
}

// Callback returns a sqp.Callback that updates the box-size and merit
// gauges after every accepted trust-region step, so /metrics reflects
// the in-progress solve without the driver importing this package.
func (c *Collectors) Callback() sqp.Callback {
	return func(_ *qp.Problem, results *sqp.Results) bool {
		if len(results.BoxSize) > 0 {
			max := results.BoxSize[0]
			for _, b := range results.BoxSize[1:] {
				if b > max {
					max = b
				}
			}
			c.TrustBoxSize.Set(max)
		}
		c.MeritValue.Set(results.BestExactMerit)
		return true
	}
}
