package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry battle metrics on a private prometheus registry
type Registry struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	Settled       prometheus.Counter
	Deferred      prometheus.Counter
	Appended      *prometheus.CounterVec
	SourceFailed  *prometheus.CounterVec
	PendingGauge  prometheus.Gauge
	LastRunUnix   prometheus.Gauge
	AgentWinRate  *prometheus.GaugeVec
	AgentAvgError *prometheus.GaugeVec
}

// NewRegistry creates and registers every battle metric
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricebattle_runs_total",
				Help: "Pipeline runs by operation and result",
			},
			[]string{"operation", "result"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricebattle_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),

		Settled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricebattle_records_settled_total",
				Help: "Forecast records settled",
			},
		),

		Deferred: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pricebattle_records_deferred_total",
				Help: "Eligible records left pending for lack of price data",
			},
		),

		Appended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricebattle_records_appended_total",
				Help: "Forecast records appended by agent",
			},
			[]string{"agent"},
		),

		SourceFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricebattle_source_failures_total",
				Help: "Forecast source calls that produced no usable forecast",
			},
			[]string{"agent"},
		),

		PendingGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricebattle_records_pending",
				Help: "Pending records after the last run",
			},
		),

		LastRunUnix: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricebattle_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),

		AgentWinRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricebattle_agent_win_rate_percent",
				Help: "Directional win rate per agent",
			},
			[]string{"agent"},
		),

		AgentAvgError: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricebattle_agent_avg_error_percent",
				Help: "Mean absolute error rate per agent",
			},
			[]string{"agent"},
		),
	}

	r.reg.MustRegister(
		r.Runs, r.StepDuration, r.Settled, r.Deferred, r.Appended, r.SourceFailed,
		r.PendingGauge, r.LastRunUnix, r.AgentWinRate, r.AgentAvgError,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler /metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveStep records a step duration since start
func (r *Registry) ObserveStep(step string, start time.Time) {
	if r == nil {
		return
	}
	r.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// RecordRun counts a finished operation
func (r *Registry) RecordRun(operation string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.Runs.WithLabelValues(operation, result).Inc()
	if err == nil {
		r.LastRunUnix.SetToCurrentTime()
	}
}

// RecordSettlement adds a settlement pass outcome
func (r *Registry) RecordSettlement(settled, deferred int) {
	if r == nil {
		return
	}
	r.Settled.Add(float64(settled))
	r.Deferred.Add(float64(deferred))
}

// RecordIngest adds per-agent ingest outcomes
func (r *Registry) RecordIngest(agent string, appended int, failed bool) {
	if r == nil {
		return
	}
	r.Appended.WithLabelValues(agent).Add(float64(appended))
	if failed {
		r.SourceFailed.WithLabelValues(agent).Inc()
	}
}

// SetPending pending records after a run
func (r *Registry) SetPending(n int) {
	if r == nil {
		return
	}
	r.PendingGauge.Set(float64(n))
}

// SetAgentStats publishes the leaderboard gauges
func (r *Registry) SetAgentStats(agent string, winRate, avgError float64) {
	if r == nil {
		return
	}
	r.AgentWinRate.WithLabelValues(agent).Set(winRate)
	r.AgentAvgError.WithLabelValues(agent).Set(avgError)
}
