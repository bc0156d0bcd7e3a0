package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes engine counters and histograms via Prometheus.
// All methods are nil-safe so callers can run without metrics wired.
type Collector struct {
	workflowsStarted  prometheus.Counter
	workflowsFinished *prometheus.CounterVec
	stepsFinished     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	workflowDuration  prometheus.Histogram
	roundsPerRun      prometheus.Histogram
	activeRuns        prometheus.Gauge
}

// NewCollector registers and returns the engine metrics collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		workflowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stepflow_workflows_started_total",
			Help: "Total number of workflow runs started",
		}),
		workflowsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepflow_workflows_finished_total",
			Help: "Total number of workflow runs finished, by terminal status",
		}, []string{"status"}),
		stepsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepflow_steps_finished_total",
			Help: "Total number of steps finished, by executor type and status",
		}, []string{"executor_type", "status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stepflow_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"executor_type"}),
		workflowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepflow_workflow_duration_seconds",
			Help:    "Workflow run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		roundsPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepflow_rounds_per_run",
			Help:    "Number of scheduler rounds per workflow run",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stepflow_active_runs",
			Help: "Number of workflow runs currently executing",
		}),
	}
}

// WorkflowStarted records a run start.
func (c *Collector) WorkflowStarted() {
	if c == nil {
		return
	}
	c.workflowsStarted.Inc()
	c.activeRuns.Inc()
}

// WorkflowFinished records a run reaching a terminal or paused state.
func (c *Collector) WorkflowFinished(status string, duration time.Duration, rounds int) {
	if c == nil {
		return
	}
	c.workflowsFinished.WithLabelValues(status).Inc()
	c.workflowDuration.Observe(duration.Seconds())
	c.roundsPerRun.Observe(float64(rounds))
	c.activeRuns.Dec()
}

// StepFinished records a step reaching a terminal state.
func (c *Collector) StepFinished(executorType, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepsFinished.WithLabelValues(executorType, status).Inc()
	c.stepDuration.WithLabelValues(executorType).Observe(duration.Seconds())
}
