package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics tracks classification and forecast activity.
type AnalysisMetrics struct {
	classifications *prometheus.CounterVec
	classifiedRows  *prometheus.GaugeVec
	forecastRuns    *prometheus.CounterVec
	forecastItems   *prometheus.CounterVec
	forecastLatency *prometheus.HistogramVec
	baselineSteps   *prometheus.CounterVec
}

// NewAnalysisMetrics registers the analysis collectors. A nil registerer yields a no-op recorder.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	if reg == nil {
		return &AnalysisMetrics{}
	}
	m := &AnalysisMetrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_runs_total",
			Help:      "Classification runs by source and outcome.",
		}, []string{"source", "outcome"}),
		classifiedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classification_rows",
			Help:      "Rows produced by the most recent classification run per source.",
		}, []string{"source"}),
		forecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_runs_total",
			Help:      "Forecast runs by origin and outcome.",
		}, []string{"origin", "outcome"}),
		forecastItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_items_total",
			Help:      "Forecasted items by origin.",
		}, []string{"origin"}),
		forecastLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "End-to-end forecast latency by origin.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"origin"}),
		baselineSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baseline_resolutions_total",
			Help:      "Baseline values by the fallback step that produced them.",
		}, []string{"strategy"}),
	}
	reg.MustRegister(m.classifications, m.classifiedRows, m.forecastRuns, m.forecastItems, m.forecastLatency, m.baselineSteps)
	return m
}

// ObserveClassification records one classification run.
func (m *AnalysisMetrics) ObserveClassification(source string, rows int, err error) {
	if m == nil || m.classifications == nil {
		return
	}
	m.classifications.WithLabelValues(normalizeLabel(source), outcome(err)).Inc()
	if err == nil {
		m.classifiedRows.WithLabelValues(normalizeLabel(source)).Set(float64(rows))
	}
}

// ObserveForecast records one forecast run.
func (m *AnalysisMetrics) ObserveForecast(origin string, items int, duration time.Duration, err error) {
	if m == nil || m.forecastRuns == nil {
		return
	}
	origin = normalizeLabel(origin)
	m.forecastRuns.WithLabelValues(origin, outcome(err)).Inc()
	m.forecastLatency.WithLabelValues(origin).Observe(duration.Seconds())
	if err == nil {
		m.forecastItems.WithLabelValues(origin).Add(float64(items))
	}
}

// IncBaselineStrategy counts which fallback step resolved a baseline.
func (m *AnalysisMetrics) IncBaselineStrategy(strategy string) {
	if m == nil || m.baselineSteps == nil {
		return
	}
	m.baselineSteps.WithLabelValues(normalizeLabel(strategy)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
