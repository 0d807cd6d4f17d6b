package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	pageDuration  prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	pagesRendered prom.Counter
	renderWorkers prom.Gauge
	linkWarnings  prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "wikigen",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "wikigen",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.pageDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "wikigen",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of individual page renders",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wikigen",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wikigen",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.pagesRendered = prom.NewCounter(prom.CounterOpts{
			Namespace: "wikigen",
			Name:      "pages_rendered_total",
			Help:      "Total pages rendered across all builds",
		})
		pr.renderWorkers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "wikigen",
			Name:      "render_workers",
			Help:      "Render worker pool size for the last build",
		})
		pr.linkWarnings = prom.NewGauge(prom.GaugeOpts{
			Namespace: "wikigen",
			Name:      "link_warnings",
			Help:      "Dangling and ambiguous wiki links in the last build",
		})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.pageDuration, pr.stageResults, pr.buildOutcome, pr.pagesRendered, pr.renderWorkers, pr.linkWarnings)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePageRenderDuration(d time.Duration) {
	if p == nil || p.pageDuration == nil {
		return
	}
	p.pageDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddPagesRendered(n int) {
	if p == nil || p.pagesRendered == nil || n <= 0 {
		return
	}
	p.pagesRendered.Add(float64(n))
}

func (p *PrometheusRecorder) SetRenderWorkers(n int) {
	if p == nil || p.renderWorkers == nil {
		return
	}
	p.renderWorkers.Set(float64(n))
}

func (p *PrometheusRecorder) SetLinkWarnings(n int) {
	if p == nil || p.linkWarnings == nil {
		return
	}
	p.linkWarnings.Set(float64(n))
}
