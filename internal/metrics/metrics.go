// Package metrics exports the latest dashboard run as Prometheus gauges in the
// node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"parity/internal/core"
)

const namespace = "parity"

// Recorder owns a private registry so each run writes a complete, fresh file.
type Recorder struct {
	registry    *prometheus.Registry
	divergence  *prometheus.GaugeVec
	mismatches  *prometheus.GaugeVec
	failed      *prometheus.GaugeVec
	clean       *prometheus.GaugeVec
	lastRunTime prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		divergence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_divergence",
			Help:      "Headline metric of the candidate minus the reference, rounded to six decimals.",
		}, []string{"candidate"}),
		mismatches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_mismatches",
			Help:      "Number of output paths where the candidate differs from the reference.",
		}, []string{"candidate"}),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_failed",
			Help:      "1 when the candidate could not be executed.",
		}, []string{"candidate"}),
		clean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_clean",
			Help:      "1 when the candidate output matched the reference.",
		}, []string{"candidate"}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last dashboard run.",
		}),
	}
	r.registry.MustRegister(r.divergence, r.mismatches, r.failed, r.clean, r.lastRunTime)
	return r
}

// Observe replaces the gauges with the values of run.
func (r *Recorder) Observe(run core.RunSummary) {
	r.divergence.Reset()
	r.mismatches.Reset()
	r.failed.Reset()
	r.clean.Reset()
	for _, c := range run.Candidates {
		r.divergence.WithLabelValues(c.Name).Set(c.Divergence)
		r.mismatches.WithLabelValues(c.Name).Set(float64(c.MismatchCount))
		r.failed.WithLabelValues(c.Name).Set(boolGauge(c.Status == core.StatusFailed))
		r.clean.WithLabelValues(c.Name).Set(boolGauge(c.Status == core.StatusOK))
	}
	r.lastRunTime.Set(float64(run.GeneratedAt.Unix()))
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Gatherer exposes the registry, e.g. for tests or a push gateway.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
