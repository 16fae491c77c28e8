package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated by the run loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles        prometheus.Counter
	faults        *prometheus.CounterVec
	completed     *prometheus.CounterVec
	selections    *prometheus.CounterVec
	globalCounter prometheus.Gauge
	cycleDuration prometheus.Histogram
	running       prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Cycles committed",
		}),
		faults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "faults_total",
			Help:      "Runs ended by a fault, by fault code",
		}, []string{"code"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "scans_completed_total",
			Help:      "Scans completed, by model index",
		}, []string{"model"}),
		selections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "model_selections_total",
			Help:      "Models selected by the control script, by model index and selection kind",
		}, []string{"model", "kind"}),
		globalCounter: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "global_counter",
			Help:      "Global counter of the current run",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Time from preparing a cycle to dispatching its model",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "labroutine",
			Subsystem: "engine",
			Name:      "running",
			Help:      "1 while a run is in progress",
		}),
	}
}

func (m *Metrics) observeCycle(global int64, seconds float64) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.globalCounter.Set(float64(global))
	m.cycleDuration.Observe(seconds)
}

func (m *Metrics) observeSelection(model int, kind string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(strconv.Itoa(model), kind).Inc()
}

func (m *Metrics) observeScanCompleted(model int) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(strconv.Itoa(model)).Inc()
}

func (m *Metrics) observeFault(code FaultCode) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
