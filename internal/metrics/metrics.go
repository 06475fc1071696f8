package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	signalsGenerated *prometheus.CounterVec
	fillsTotal       *prometheus.CounterVec
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	fetchAttempts    *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_signals_generated_total",
			Help: "Total number of signals generated",
		},
		[]string{"strategy", "action"},
	)
	r.fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"side"},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "momentum_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_data_fetch_attempts_total",
			Help: "Total number of historical data fetch attempts",
		},
		[]string{"source", "status"},
	)

	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.fillsTotal)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.fetchAttempts)

	return r
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(strategy, action string) {
	r.signalsGenerated.WithLabelValues(strategy, action).Inc()
}

// RecordFill records a simulated fill.
func (r *Registry) RecordFill(side string) {
	r.fillsTotal.WithLabelValues(side).Inc()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		r.backtestDuration.Observe(duration)
	}
}

// RecordFetch records one historical data fetch attempt.
func (r *Registry) RecordFetch(source, status string) {
	r.fetchAttempts.WithLabelValues(source, status).Inc()
}

// WriteTextfile writes the current metrics in the node exporter
// textfile format. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
