// Package metrics records conversion counters on a private Prometheus
// registry and writes them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the build metrics of one process.
type Recorder struct {
	reg *prometheus.Registry

	packagesConverted prometheus.Counter
	treeDecisions     *prometheus.CounterVec
	diagnostics       *prometheus.CounterVec
	builds            *prometheus.CounterVec
	buildDuration     prometheus.Histogram
	nodesRebuilt      prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		packagesConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "embroider_packages_converted_total",
			Help: "Number of v1 packages converted to v2.",
		}),
		treeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embroider_tree_decisions_total",
			Help: "Conversion decisions by tree type and outcome.",
		}, []string{"tree", "decision"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embroider_diagnostics_total",
			Help: "Diagnostics reported by kind.",
		}, []string{"kind"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embroider_builds_total",
			Help: "Build cycles by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "embroider_build_duration_seconds",
			Help:    "Time taken by one build cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		nodesRebuilt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "embroider_nodes_rebuilt",
			Help: "Build nodes rebuilt in the last successful cycle.",
		}),
	}
	r.reg.MustRegister(
		r.packagesConverted,
		r.treeDecisions,
		r.diagnostics,
		r.builds,
		r.buildDuration,
		r.nodesRebuilt,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) PackageConverted() { r.packagesConverted.Inc() }

func (r *Recorder) TreeDecision(tree, decision string) {
	r.treeDecisions.WithLabelValues(tree, decision).Inc()
}

func (r *Recorder) Diagnostic(kind string) {
	r.diagnostics.WithLabelValues(kind).Inc()
}

// Build records one build cycle.
func (r *Recorder) Build(d time.Duration, rebuilt int, err error) {
	r.buildDuration.Observe(d.Seconds())
	if err != nil {
		r.builds.WithLabelValues("error").Inc()
		return
	}
	r.builds.WithLabelValues("ok").Inc()
	r.nodesRebuilt.Set(float64(rebuilt))
}

// WriteFile writes every metric to path atomically.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
