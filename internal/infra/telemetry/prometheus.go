package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jitmcp/internal/domain"
)

type PrometheusMetrics struct {
	turnDuration  *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	searchResults *prometheus.HistogramVec
	searchLatency *prometheus.HistogramVec
	modelTokens   *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	hydrations    *prometheus.CounterVec
	toolCalls     *prometheus.HistogramVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_turn_duration_seconds",
				Help:    "Duration of orchestrated turns in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		searchResults: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_search_results",
				Help:    "Number of candidates returned per search pass",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"strategy"},
		),
		searchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_search_latency_seconds",
				Help:    "Latency of registry search passes in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"strategy"},
		),
		modelTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitd_model_tokens_total",
				Help: "Total number of tokens consumed by model calls",
			},
			[]string{"provider", "model"},
		),
		modelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_model_latency_seconds",
				Help:    "Latency of model calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "model"},
		),
		hydrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jitd_hydrations_total",
				Help: "Total number of schema hydration attempts per tool server",
			},
			[]string{"uri", "status"},
		),
		toolCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jitd_tool_call_duration_seconds",
				Help:    "Duration of dispatched tool calls in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
	}
}

func (p *PrometheusMetrics) ObserveTurn(status domain.TurnStatus, duration time.Duration) {
	p.turnDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveStage(stage domain.Stage, duration time.Duration) {
	p.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveSearch(strategy string, results int, duration time.Duration) {
	p.searchResults.WithLabelValues(strategy).Observe(float64(results))
	p.searchLatency.WithLabelValues(strategy).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveModelTokens(provider, model string, tokens int) {
	p.modelTokens.WithLabelValues(provider, model).Add(float64(tokens))
}

func (p *PrometheusMetrics) ObserveModelLatency(provider, model string, duration time.Duration) {
	p.modelLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveHydration(uri string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.hydrations.WithLabelValues(uri, status).Inc()
}

func (p *PrometheusMetrics) ObserveToolCall(status domain.CallStatus, duration time.Duration) {
	p.toolCalls.WithLabelValues(string(status)).Observe(duration.Seconds())
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
